package resource

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry()

	res, err := reg.Create(Spec{
		Path:       Path{3201, 0, 5853},
		Name:       "blink_pattern",
		Type:       String,
		Operations: ReadWrite,
		Initial:    "500:500:500:500",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.Text() != "500:500:500:500" {
		t.Errorf("Text() = %q, want default pattern", res.Text())
	}

	if _, err := reg.Create(Spec{Path: Path{3201, 0, 5853}, Type: String, Operations: ReadOnly}); !errors.Is(err, ErrResourceExists) {
		t.Errorf("duplicate Create() error = %v, want ErrResourceExists", err)
	}

	got, err := reg.Lookup("3201/0/5853")
	if err != nil || got != res {
		t.Errorf("Lookup() = %v, %v; want same handle", got, err)
	}

	if _, err := reg.Get(Path{1, 2, 3}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_CreateInvalid(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr error
	}{
		{"no operations", Spec{Path: Path{1, 0, 1}, Type: Integer}, ErrInvalidSpec},
		{"delayed without post", Spec{Path: Path{1, 0, 1}, Type: String, Operations: ReadOnly, Delayed: true}, ErrInvalidSpec},
		{"unknown type", Spec{Path: Path{1, 0, 1}, Type: ValueType(7), Operations: ReadOnly}, ErrInvalidSpec},
		{"string initial on integer", Spec{Path: Path{1, 0, 1}, Type: Integer, Operations: ReadOnly, Initial: "x"}, ErrTypeMismatch},
		{"int initial on string", Spec{Path: Path{1, 0, 1}, Type: String, Operations: ReadOnly, Initial: 5}, ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry().Create(tt.spec); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_ListKeepsCreationOrder(t *testing.T) {
	reg := NewRegistry()
	paths := []Path{{3200, 0, 5501}, {3201, 0, 5853}, {3201, 0, 5850}, {3303, 0, 5700}, {5000, 0, 1}, {5000, 0, 2}}
	for _, p := range paths {
		if _, err := reg.Create(Spec{Path: p, Type: Integer, Operations: ReadOnly}); err != nil {
			t.Fatalf("Create(%s) error = %v", p, err)
		}
	}

	list := reg.List()
	if len(list) != len(paths) || reg.Len() != len(paths) {
		t.Fatalf("List() len = %d, want %d", len(list), len(paths))
	}
	for i, res := range list {
		if res.Path() != paths[i] {
			t.Errorf("List()[%d] = %s, want %s", i, res.Path(), paths[i])
		}
	}
}

func TestResource_TypedValues(t *testing.T) {
	reg := NewRegistry()
	counter, _ := reg.Create(Spec{Path: Path{3200, 0, 5501}, Type: Integer, Operations: ReadOnly})
	pattern, _ := reg.Create(Spec{Path: Path{3201, 0, 5853}, Type: String, Operations: ReadWrite})

	if err := counter.SetInt(3); err != nil {
		t.Fatalf("SetInt() error = %v", err)
	}
	if v, err := counter.Int(); err != nil || v != 3 {
		t.Errorf("Int() = %d, %v; want 3", v, err)
	}
	if counter.Text() != "3" {
		t.Errorf("Text() = %q, want 3", counter.Text())
	}
	if counter.UpdatedAt().IsZero() {
		t.Error("UpdatedAt() should be set after SetInt")
	}

	if err := counter.SetText("x"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("SetText on integer error = %v, want ErrTypeMismatch", err)
	}
	if err := pattern.SetInt(1); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("SetInt on string error = %v, want ErrTypeMismatch", err)
	}
	if _, err := pattern.Int(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Int on string error = %v, want ErrTypeMismatch", err)
	}
}

func TestResource_Write(t *testing.T) {
	reg := NewRegistry()

	var written []string
	pattern, _ := reg.Create(Spec{
		Path:       Path{3201, 0, 5853},
		Type:       String,
		Operations: ReadWrite,
		OnWrite:    func(res *Resource) { written = append(written, res.Text()) },
	})
	counter, _ := reg.Create(Spec{Path: Path{3200, 0, 5501}, Type: Integer, Operations: ReadOnly})
	level, _ := reg.Create(Spec{Path: Path{9, 0, 1}, Type: Integer, Operations: ReadWrite})

	if err := pattern.Write("100:100"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(written) != 1 || written[0] != "100:100" {
		t.Errorf("write callback saw %v", written)
	}

	if err := counter.Write("5"); !errors.Is(err, ErrOperationNotAllowed) {
		t.Errorf("Write on read-only error = %v, want ErrOperationNotAllowed", err)
	}
	if err := level.Write("abc"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Write non-integer error = %v, want ErrTypeMismatch", err)
	}
	if err := level.Write("42"); err != nil {
		t.Errorf("Write integer error = %v", err)
	}
	if v, _ := level.Int(); v != 42 {
		t.Errorf("Int() = %d, want 42", v)
	}
}

func TestRegistry_OnChange(t *testing.T) {
	reg := NewRegistry()
	res, _ := reg.Create(Spec{Path: Path{3303, 0, 5700}, Type: Integer, Operations: ReadOnly, Observable: true})

	var mu sync.Mutex
	var seen []int64
	reg.OnChange(func(r *Resource) {
		v, _ := r.Int()
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})
	reg.OnChange(nil)

	_ = res.SetInt(2150)
	_ = res.SetInt(2150)

	if len(seen) != 2 {
		t.Errorf("listener calls = %d, want 2 (every set notifies)", len(seen))
	}
}

func TestResource_ReportStatus(t *testing.T) {
	reg := NewRegistry()

	var got []DeliveryStatus
	res, _ := reg.Create(Spec{
		Path:       Path{3200, 0, 5501},
		Type:       Integer,
		Operations: ReadOnly,
		OnStatus: func(_ *Resource, status DeliveryStatus, kind MessageKind) {
			if kind != Notification {
				t.Errorf("kind = %s, want notification", kind)
			}
			got = append(got, status)
		},
	})
	silent, _ := reg.Create(Spec{Path: Path{3200, 0, 1}, Type: Integer, Operations: ReadOnly})

	res.ReportStatus(Queued, Notification)
	res.ReportStatus(Delivered, Notification)
	silent.ReportStatus(Delivered, Notification)

	if len(got) != 2 || got[0] != Queued || got[1] != Delivered {
		t.Errorf("statuses = %v, want [queued delivered]", got)
	}
}
