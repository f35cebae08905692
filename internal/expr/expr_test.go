package expr

import "testing"

func pushScope() Scope {
	return Scope{
		EventName: "push",
		Ref:       "refs/heads/main",
		RefName:   "main",
		RunNumber: 42,
		RunnerOS:  "Linux",
		Matrix:    map[string]string{"os": "ubuntu-latest", "python-version": "3.12"},
	}
}

func TestEval(t *testing.T) {
	scope := pushScope()

	cases := []struct {
		condition string
		want      bool
	}{
		{"", true},
		{"github.event_name == 'push'", true},
		{"github.event_name == 'pull_request'", false},
		{"github.event_name != 'pull_request'", true},
		{"matrix.os == 'ubuntu-latest'", true},
		{"matrix.os == 'windows-latest'", false},
		{"matrix.python-version == '3.12'", true},
		{"github.ref == 'refs/heads/main'", true},
		{"github.ref_name == 'main'", true},
		{"github.run_number == '42'", true},
		{"runner.os == 'Linux'", true},
		{"startsWith(github.ref, 'refs/heads/')", true},
		{"startsWith(github.ref, 'refs/tags/')", false},
		{"endsWith(matrix.os, '-latest')", true},
		{"contains(matrix.os, 'ubuntu')", true},
		{"contains(matrix.os, 'windows')", false},
		{"!contains(matrix.os, 'windows')", true},
		{"true", true},
		{"false", false},
		{"github.event_name", true},
		{"matrix.missing", false},
		{"github.event_name == 'push' && matrix.os == 'ubuntu-latest'", true},
		{"github.event_name == 'push' && matrix.os == 'windows-latest'", false},
		{"matrix.os == 'windows-latest' || matrix.os == 'ubuntu-latest'", true},
		// && binds tighter than ||.
		{"false || github.event_name == 'push' && runner.os == 'Linux'", true},
		{"true && false || false", false},
		{"${{ github.event_name == 'push' }}", true},
		{"unknown.reference == ''", true},
	}

	for _, tc := range cases {
		got, err := Eval(tc.condition, scope)
		if err != nil {
			t.Fatalf("Eval(%q) error: %v", tc.condition, err)
		}
		if got != tc.want {
			t.Fatalf("Eval(%q) = %v, want %v", tc.condition, got, tc.want)
		}
	}
}

func TestEvalErrors(t *testing.T) {
	scope := pushScope()

	for _, condition := range []string{
		"fromJSON(matrix.os)",
		"github.event_name == ",
		"== 'push'",
		"startsWith(github.ref, 'x') && ",
	} {
		if _, err := Eval(condition, scope); err == nil {
			t.Fatalf("Eval(%q) expected error", condition)
		}
	}
}

func TestInterpolate(t *testing.T) {
	scope := pushScope()

	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"dist-${{ matrix.os }}", "dist-ubuntu-latest"},
		{"v${{ github.run_number }}", "v42"},
		{"${{ matrix.os }}/${{ matrix.python-version }}", "ubuntu-latest/3.12"},
		{"${{ unknown.reference }}", ""},
	}

	for _, tc := range cases {
		if got := Interpolate(tc.in, scope); got != tc.want {
			t.Fatalf("Interpolate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
