package pattern

import "testing"

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		patterns []string
		want     bool
	}{
		{"exact", "src/app.ts", []string{"src/app.ts"}, true},
		{"doublestar", "src/lib/deep/util.ts", []string{"src/**"}, true},
		{"doublestar suffix", "tests/e2e/login.spec.ts", []string{"**/*.spec.ts"}, true},
		{"top-level doublestar suffix", "login.spec.ts", []string{"**/*.spec.ts"}, true},
		{"star does not cross dirs", "src/lib/util.ts", []string{"src/*.ts"}, false},
		{"basename anywhere", "docs/guide/README.md", []string{"*.md"}, true},
		{"brace class", "src/a.tsx", []string{"src/*.{ts,tsx}"}, true},
		{"no match", "src/app.ts", []string{"lib/**"}, false},
		{"windows separators normalized", `src\app.ts`, []string{"src/app.ts"}, true},
		{"leading dot-slash normalized", "./src/app.ts", []string{"src/app.ts"}, true},
		{"invalid pattern skipped", "src/app.ts", []string{"[", "src/app.ts"}, true},
		{"invalid pattern never matches", "src/app.ts", []string{"["}, false},
		{"empty list", "src/app.ts", nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Matches(tc.path, tc.patterns); got != tc.want {
				t.Errorf("Matches(%q, %v) = %v, want %v", tc.path, tc.patterns, got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"src/app.ts", "src/app.ts"},
		{`src\app.ts`, "src/app.ts"},
		{`src\lib\deep\util.ts`, "src/lib/deep/util.ts"},
		{"./src/app.ts", "src/app.ts"},
		{`.\src\app.ts`, "src/app.ts"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMatchesDeterministic(t *testing.T) {
	patterns := []string{"**/*.spec.ts", "docs/**", "["}
	path := "tests/util.spec.ts"

	first := Matches(path, patterns)
	for i := 0; i < 10; i++ {
		if got := Matches(path, patterns); got != first {
			t.Fatalf("classification changed between calls: %v then %v", first, got)
		}
	}
}

func TestResolvePriority(t *testing.T) {
	lists := Lists{
		Test:   []string{"**/*.spec.ts"},
		Skip:   []string{"**/*.md", "tests/**"},
		Common: []string{"tests/**", "package.json"},
	}

	tests := []struct {
		path string
		want Category
	}{
		// A test match always wins, even when skip and common also match.
		{"tests/util.spec.ts", CategoryTest},
		{"tests/helper.ts", CategorySkip},
		{"README.md", CategorySkip},
		{"package.json", CategoryCommon},
		{"src/app.ts", CategoryOther},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			if got := Resolve(tc.path, lists); got != tc.want {
				t.Errorf("Resolve(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	paths := []string{"a.spec.ts", "b.ts", "sub/c.spec.ts"}
	got := Filter(paths, []string{"**/*.spec.ts"})
	if len(got) != 2 || got[0] != "a.spec.ts" || got[1] != "sub/c.spec.ts" {
		t.Errorf("Filter = %v, want [a.spec.ts sub/c.spec.ts]", got)
	}
}
