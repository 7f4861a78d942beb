package raw

import "testing"

func TestConfGet(t *testing.T) {
	t.Setenv("APP_NAME", " recycle ")
	t.Setenv("LOG_LEVEL", " debug ")

	root := New()
	lg := root.Prefix("LOG_")

	tests := []struct {
		name string
		conf Conf
		key  string
		def  string
		want string
	}{
		{name: "root value", conf: root, key: "APP_NAME", def: "x", want: "recycle"},
		{name: "prefixed value", conf: lg, key: "LEVEL", def: "x", want: "debug"},
		{name: "missing returns default", conf: lg, key: "MISSING", def: "defv", want: "defv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conf.Get(tt.key, tt.def); got != tt.want {
				t.Fatalf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestConfGetBool(t *testing.T) {
	lg := New().Prefix("LOG_")
	t.Setenv("LOG_T1", "true")
	t.Setenv("LOG_T2", "ON")
	t.Setenv("LOG_T3", " yes ")
	t.Setenv("LOG_F1", "0")
	t.Setenv("LOG_F2", "nope")

	tests := []struct {
		key  string
		def  bool
		want bool
	}{
		{"T1", false, true},
		{"T2", false, true},
		{"T3", false, true},
		{"F1", true, false},
		{"F2", true, false},
		{"MISSING", true, true},
	}
	for _, tt := range tests {
		if got := lg.GetBool(tt.key, tt.def); got != tt.want {
			t.Fatalf("GetBool(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestConfGetInt(t *testing.T) {
	sys := New().Prefix("SYS_")
	t.Setenv("SYS_OK", " 42 ")
	t.Setenv("SYS_NONNUM", "12x")
	t.Setenv("SYS_NEG", "-5")

	if got := sys.GetInt("OK", 0); got != 42 {
		t.Fatalf("GetInt(OK) = %d", got)
	}
	if got := sys.GetInt("NONNUM", 9); got != 9 {
		t.Fatalf("GetInt(NONNUM) = %d", got)
	}
	if got := sys.GetInt("NEG", 3); got != 3 {
		t.Fatalf("GetInt(NEG) = %d", got)
	}
	if got := sys.GetInt("MISSING", 11); got != 11 {
		t.Fatalf("GetInt(MISSING) = %d", got)
	}
}
