package utils

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Simple name", "Juice Factory", "juice-factory"},
		{"Swedish diacritics", "Café Ä Ö", "cafe-a-o"},
		{"Umlaut", "Müller & Co", "muller-co"},
		{"Punctuation runs", "A.Westerlund -- AB!!", "a-westerlund-ab"},
		{"Leading and trailing junk", "  --Norrbygruppen AB-- ", "norrbygruppen-ab"},
		{"Already a slug", "peter-wallgren-solleftea-ab", "peter-wallgren-solleftea-ab"},
		{"Digits preserved", "100flow AB", "100flow-ab"},
		{"Only punctuation", "!!!", ""},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSlugify_Idempotent(t *testing.T) {
	inputs := []string{
		"Café Ä Ö",
		"Juice Factory",
		"  Peter Wallgren Sollefteå AB  ",
		"100flow---AB",
		"",
	}

	for _, in := range inputs {
		once := Slugify(in)
		twice := Slugify(once)
		if once != twice {
			t.Errorf("Slugify not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestIsReservedRoute(t *testing.T) {
	tests := []struct {
		name     string
		segment  string
		expected bool
	}{
		{"Reserved - api", "api", true},
		{"Reserved - API (uppercase)", "API", true},
		{"Reserved - admin", "admin", true},
		{"Reserved - kontakt", "kontakt", true},
		{"Reserved - engine", "engine", true},
		{"Reserved - favicon.ico", "favicon.ico", true},
		{"Not reserved - juice-factory", "juice-factory", false},
		{"Not reserved - api-demo", "api-demo", false}, // prefix only, not exact
		{"Empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsReservedRoute(tt.segment); got != tt.expected {
				t.Errorf("IsReservedRoute(%q) = %v, want %v", tt.segment, got, tt.expected)
			}
		})
	}
}

func TestValidateSlug(t *testing.T) {
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name    string
		slug    string
		wantErr error
	}{
		{"Valid", "juice-factory", nil},
		{"Valid with underscore", "demo_site1", nil},
		{"Valid mixed case", "JuiceFactory", nil},
		{"Empty", "", ErrEmptySlug},
		{"Too long", string(long), ErrSlugTooLong},
		{"Dot", "favicon.ico", ErrSlugInvalidFormat},
		{"Slash", "a/b", ErrSlugInvalidFormat},
		{"Space", "a b", ErrSlugInvalidFormat},
		{"Unicode", "sollefteå", ErrSlugInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateSlug(tt.slug, MaxSlugLength); err != tt.wantErr {
				t.Errorf("ValidateSlug(%q) = %v, want %v", tt.slug, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTargetURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"Valid https", "https://v0-juice-factory-website.vercel.app", false},
		{"Valid http", "http://example.com/path", false},
		{"Empty", "", true},
		{"No scheme", "example.com", true},
		{"Bad scheme", "ftp://example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTargetURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTargetURL(%q) = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestEnsureHTTPS(t *testing.T) {
	if got := EnsureHTTPS("example.com"); got != "https://example.com" {
		t.Errorf("EnsureHTTPS() = %q", got)
	}
	if got := EnsureHTTPS("http://example.com"); got != "http://example.com" {
		t.Errorf("EnsureHTTPS() should not rewrite explicit http: %q", got)
	}
	if got := EnsureHTTPS("  https://example.com "); got != "https://example.com" {
		t.Errorf("EnsureHTTPS() should trim whitespace: %q", got)
	}
}
