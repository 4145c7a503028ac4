package vm

import (
	"testing"

	"github.com/google/uuid"
)

func TestImageRoundTrip(t *testing.T) {
	r := NewTypeRegistry()
	point := r.Alias("Point", r.Product([]string{"x", "y"}, []*Type{r.Num, r.Num}))
	b := NewBuilder(0)
	b.EmitPush(Num(2))
	b.EmitPush(Num(1))
	b.Emit(OpTuple, TypeWord(point), IntWord(2))
	b.Emit(OpCmpType, TypeWord(point))
	skip := b.EmitJump(OpJmpF)
	b.Emit(OpStr, StringWord("point"))
	b.Emit(OpHalt)
	b.PatchJump(skip)
	b.EmitPush(False)
	b.Emit(OpHalt)

	img, err := NewImage("test", r, b.Code(), 0, 0, 0, nil)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	if _, err := uuid.Parse(img.BuildID); err != nil {
		t.Errorf("BuildID %q: %v", img.BuildID, err)
	}
	data, err := img.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	again, err := img.Marshal()
	if err != nil || string(again) != string(data) {
		t.Errorf("encoding is not deterministic")
	}

	decoded, err := UnmarshalImage(data)
	if err != nil {
		t.Fatalf("UnmarshalImage: %v", err)
	}

	// Install into a fresh registry at a non-zero base.
	fresh := NewTypeRegistry()
	m := New(fresh, Config{})
	pad := NewBuilder(0)
	pad.Emit(OpHalt)
	if _, err := m.Load(pad.Code()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	code, entry, err := decoded.Install(fresh, m.CodeLen())
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if entry != 1 {
		t.Errorf("entry = %d, want 1", entry)
	}
	base, err := m.Load(code)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Run(base); err != nil {
		t.Fatalf("Run: %v", err)
	}
	v, _ := m.Result()
	if got := m.Format(v); got != "point" {
		t.Errorf("result = %q, want point", got)
	}
	if _, ok := fresh.Resolve("(x:Num,y:Num)"); !ok {
		t.Errorf("product type not recreated")
	}
}

func TestUnmarshalImageRejectsBadHeader(t *testing.T) {
	img := &Image{Magic: "NOPE", Version: ImageVersion}
	data, err := img.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := UnmarshalImage(data); err == nil {
		t.Errorf("UnmarshalImage accepted bad magic")
	}
	if _, err := UnmarshalImage([]byte{0xff, 0x00}); err == nil {
		t.Errorf("UnmarshalImage accepted garbage")
	}
}
