package track

import "testing"

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Namespace: "ns", Name: "video0", AuthInfo: "secret"}, false},
		{"empty namespace", Config{Name: "video0", AuthInfo: "secret"}, true},
		{"empty name", Config{Namespace: "ns", AuthInfo: "secret"}, true},
		{"empty authInfo", Config{Namespace: "ns", Name: "video0"}, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetValidateEmpty(t *testing.T) {
	t.Parallel()
	if err := (Set{}).Validate(); err == nil {
		t.Fatal("expected error for empty track set")
	}
}

func TestSetValidateNilConfig(t *testing.T) {
	t.Parallel()
	s := Set{KindVideo: nil}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestSetNamespacesDeduplicatesAndOrders(t *testing.T) {
	t.Parallel()
	s := Set{
		KindData:  {Namespace: "shared", Name: "data0", AuthInfo: "a"},
		KindVideo: {Namespace: "shared", Name: "video0", AuthInfo: "a"},
		KindAudio: {Namespace: "other", Name: "audio0", AuthInfo: "a"},
	}
	got := s.Namespaces()
	want := []string{"other", "shared"}
	if len(got) != len(want) {
		t.Fatalf("Namespaces() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Namespaces()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSetByNamespaceName(t *testing.T) {
	t.Parallel()
	s := Set{
		KindAudio: {Namespace: "ns", Name: "audio0", AuthInfo: "a"},
	}
	kind, cfg, ok := s.ByNamespaceName("ns", "audio0")
	if !ok || kind != KindAudio || cfg.Name != "audio0" {
		t.Fatalf("ByNamespaceName() = (%v, %v, %v), want (audio, audio0 config, true)", kind, cfg, ok)
	}
	if _, _, ok := s.ByNamespaceName("ns", "missing"); ok {
		t.Fatal("expected ok=false for unknown track name")
	}
}

func TestPackagingFor(t *testing.T) {
	t.Parallel()
	if PackagingFor(KindData) != true {
		t.Fatal("PackagingFor(data) = false, want true")
	}
	for _, k := range []Kind{KindAudio, KindVideo} {
		if PackagingFor(k) != false {
			t.Fatalf("PackagingFor(%v) = true, want false", k)
		}
	}
}

func TestStateAdvance(t *testing.T) {
	t.Parallel()
	var s State

	groupSeq, objSeq := s.Advance(true)
	if groupSeq != 1 || objSeq != 0 {
		t.Fatalf("first key: got (%d, %d), want (1, 0)", groupSeq, objSeq)
	}

	groupSeq, objSeq = s.Advance(false)
	if groupSeq != 1 || objSeq != 1 {
		t.Fatalf("first delta: got (%d, %d), want (1, 1)", groupSeq, objSeq)
	}

	groupSeq, objSeq = s.Advance(false)
	if groupSeq != 1 || objSeq != 2 {
		t.Fatalf("second delta: got (%d, %d), want (1, 2)", groupSeq, objSeq)
	}

	groupSeq, objSeq = s.Advance(true)
	if groupSeq != 2 || objSeq != 0 {
		t.Fatalf("second key: got (%d, %d), want (2, 0)", groupSeq, objSeq)
	}
}
