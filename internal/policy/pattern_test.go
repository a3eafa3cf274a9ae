package policy

import "testing"

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"exact", `HKCU\Software\Example`, `HKCU\Software\Example`, true},
		{"case insensitive", `HKCU\Software\Example`, `hkcu\software\EXAMPLE`, true},
		{"separator normalized", `HKCU\Software\Example`, `HKCU/Software/Example`, true},
		{"double star matches suffix", `HKCU\Software\**`, `HKCU\Software\Example\App\Key`, true},
		{"double star matches empty suffix", `HKCU\Software\**`, `HKCU\Software`, true},
		{"double star wrong prefix", `HKCU\Software\**`, `HKLM\Software\Example`, false},
		{"star within segment", `C:\Temp\example*`, `C:\Temp\example-12345`, true},
		{"star does not cross separator", `C:\Temp\example*`, `C:\Temp\example\file.txt`, false},
		{"star mid segment", `C:\Users\*\Documents`, `C:\Users\alice\Documents`, true},
		{"star mid segment deep", `C:\Users\*\Documents`, `C:\Users\alice\x\Documents`, false},
		{"other vendor not own namespace", `HKCU\Software\Example\App\**`, `HKCU\Software\OtherVendor\Key`, false},
		{"prefix alone does not match", `HKCU\Software\Example\App\**`, `HKCU\Software`, false},
		{"longer path without double star", `HKCU\Software\Example`, `HKCU\Software\Example\Key`, false},
		{"unix path", `/var/lib/example/**`, `/var/lib/example/data/state.db`, true},
		{"unix path outside", `/var/lib/example/**`, `/var/lib/other/state.db`, false},
		{"multiple stars in segment", `*.tmp`, `upload.1.tmp`, true},
		{"empty path", `**`, ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := CompilePattern(tt.pattern)
			if got := p.Match(tt.path); got != tt.want {
				t.Errorf("Pattern(%q).Match(%q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestRelativeSegmentsNeverMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
	}{
		{"parent hops escape data dir", `C:\ProgramData\ExampleApp\**`, `C:\ProgramData\ExampleApp\..\..\Windows\System32\evil.dll`},
		{"single parent hop", `C:\ProgramData\ExampleApp\**`, `C:\ProgramData\ExampleApp\..\Other\file.txt`},
		{"unix parent hops", `/var/lib/example/**`, `/var/lib/example/../../etc/shadow`},
		{"current dir segment", `C:\ProgramData\ExampleApp\**`, `C:\ProgramData\ExampleApp\.\settings.ini`},
		{"bare double star", `**`, `..\anything`},
		{"parent hop before prefix", `C:\Temp\**`, `..\C:\Temp\file.txt`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := CompilePattern(tt.pattern)
			if p.Match(tt.path) {
				t.Errorf("Pattern(%q).Match(%q) = true, want false", tt.pattern, tt.path)
			}
		})
	}
}

func TestMatchAnyReturnsMatchingPattern(t *testing.T) {
	patterns := CompilePatterns([]string{
		`HKLM\Software\**`,
		`HKCU\Software\**`,
	})

	pat, ok := MatchAny(patterns, `HKCU\Software\Example`)
	if !ok {
		t.Fatal("expected a match")
	}
	if pat.String() != `HKCU\Software\**` {
		t.Errorf("matched pattern = %q, want HKCU\\Software\\**", pat.String())
	}

	if _, ok := MatchAny(patterns, `HKCR\Classes`); ok {
		t.Error("expected no match for HKCR path")
	}
}

func TestCompilePatternsSkipsEmpty(t *testing.T) {
	patterns := CompilePatterns([]string{``, `  `, `a\b`})
	if len(patterns) != 1 {
		t.Fatalf("got %d patterns, want 1", len(patterns))
	}
}

func TestNormalizeKeys(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ctrl+Alt+Del", "ctrl+alt+del"},
		{"ctrl + alt + del", "ctrl+alt+del"},
		{"CTRL\t+ ALT\n+ DEL", "ctrl+alt+del"},
		{"hello world", "helloworld"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeKeys(tt.in); got != tt.want {
			t.Errorf("NormalizeKeys(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
