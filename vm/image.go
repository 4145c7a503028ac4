package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Program images
// ---------------------------------------------------------------------------

// ImageMagic identifies an encoded program image.
const ImageMagic = "ANGC"

// ImageVersion is the current image format version.
// Increment when making incompatible changes to the format.
const ImageVersion = 1

var imageEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em
}

// Image is a compiled program together with the type descriptors its
// instructions reference. Addresses in Code are relative to the image start.
type Image struct {
	Magic   string `cbor:"1,keyasint"`
	Version int    `cbor:"2,keyasint"`
	BuildID string `cbor:"3,keyasint"`
	Name    string `cbor:"4,keyasint"`

	Types   []TypeRecord `cbor:"5,keyasint"`
	Globals int          `cbor:"6,keyasint"`
	Natives []string     `cbor:"7,keyasint"` // natives bound to the first global slots
	Entry   int          `cbor:"8,keyasint"`
	Code    []WordRecord `cbor:"9,keyasint"`

	// SourceHash is the hex content hash of the program the image was
	// compiled from, when the builder recorded one.
	SourceHash string `cbor:"10,keyasint,omitempty"`
}

// TypeRecord is the serialized form of a type descriptor. Slots and
// Underlying refer to other records by ID.
type TypeRecord struct {
	ID          int      `cbor:"1,keyasint"`
	Name        string   `cbor:"2,keyasint"`
	Category    uint8    `cbor:"3,keyasint"`
	Slots       []int    `cbor:"4,keyasint,omitempty"`
	SlotNames   []string `cbor:"5,keyasint,omitempty"`
	UserDefined bool     `cbor:"6,keyasint,omitempty"`
	Underlying  int      `cbor:"7,keyasint,omitempty"`
}

// WordRecord is the serialized form of a program word.
type WordRecord struct {
	Kind  uint8   `cbor:"1,keyasint"`
	Op    uint8   `cbor:"2,keyasint,omitempty"`
	Int   int     `cbor:"3,keyasint,omitempty"`
	Value uint8   `cbor:"4,keyasint,omitempty"` // Kind of an immediate
	Num   float64 `cbor:"5,keyasint,omitempty"`
	Type  int     `cbor:"6,keyasint,omitempty"`
	Str   string  `cbor:"7,keyasint,omitempty"`
}

// NewImage captures code and every type descriptor in types. code must
// start at address base; stored addresses are made relative to it.
func NewImage(name string, types *TypeRegistry, code []Word, base, entry, globals int, natives []string) (*Image, error) {
	img := &Image{
		Magic:   ImageMagic,
		Version: ImageVersion,
		BuildID: uuid.NewString(),
		Name:    name,
		Globals: globals,
		Natives: natives,
		Entry:   entry - base,
	}
	for _, t := range types.All() {
		rec := TypeRecord{ID: t.ID, Name: t.Name, Category: uint8(t.Category), UserDefined: t.UserDefined}
		for i, s := range t.Slots {
			rec.Slots = append(rec.Slots, s.ID)
			rec.SlotNames = append(rec.SlotNames, t.SlotNames[i])
		}
		if t.UserDefined {
			rec.Underlying = t.Underlying.ID
			// Aliases share the underlying layout; it is restored from there.
			rec.Slots, rec.SlotNames = nil, nil
		}
		img.Types = append(img.Types, rec)
	}

	addrs := addressOperands(code)
	for i, w := range code {
		rec := WordRecord{Kind: uint8(w.Kind)}
		switch w.Kind {
		case WordOp:
			rec.Op = uint8(w.Op)
		case WordInt:
			rec.Int = w.Int
			if addrs[i] {
				rec.Int -= base
			}
		case WordValue:
			if w.Value.IsRef() {
				return nil, fmt.Errorf("image: heap reference in code at %04d", base+i)
			}
			rec.Value = uint8(w.Value.Kind())
			rec.Num = w.Value.num
		case WordType:
			rec.Type = w.Type.ID
		case WordString:
			rec.Str = w.Str
		}
		img.Code = append(img.Code, rec)
	}
	return img, nil
}

// Marshal encodes the image as canonical CBOR.
func (img *Image) Marshal() ([]byte, error) {
	return imageEncMode.Marshal(img)
}

// UnmarshalImage decodes an image and checks its header.
func UnmarshalImage(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if img.Magic != ImageMagic {
		return nil, fmt.Errorf("image: bad magic %q", img.Magic)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("image: unsupported version %d (want %d)", img.Version, ImageVersion)
	}
	return &img, nil
}

// Install recreates the image's types in types and returns its code
// relocated to start at address base, along with the relocated entry.
func (img *Image) Install(types *TypeRegistry, base int) ([]Word, int, error) {
	byID := make(map[int]*Type, len(img.Types))
	lookup := func(id int) (*Type, error) {
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("image: unknown type id %d", id)
		}
		return t, nil
	}

	for _, rec := range img.Types {
		if rec.UserDefined {
			u, err := lookup(rec.Underlying)
			if err != nil {
				return nil, 0, err
			}
			byID[rec.ID] = types.Alias(rec.Name, u)
			continue
		}
		slots := make([]*Type, len(rec.Slots))
		for i, id := range rec.Slots {
			s, err := lookup(id)
			if err != nil {
				return nil, 0, err
			}
			slots[i] = s
		}
		if t, ok := types.Resolve(rec.Name); ok {
			byID[rec.ID] = t
			continue
		}
		byID[rec.ID] = types.Intern(rec.Name, func(t *Type) {
			t.Category = Category(rec.Category)
			for i, s := range slots {
				types.AddSlot(t, rec.SlotNames[i], s)
			}
		})
	}

	code := make([]Word, len(img.Code))
	for i, rec := range img.Code {
		w := Word{Kind: WordKind(rec.Kind)}
		switch w.Kind {
		case WordOp:
			w.Op = Opcode(rec.Op)
		case WordInt:
			w.Int = rec.Int
		case WordValue:
			switch Kind(rec.Value) {
			case KindNum:
				w.Value = Num(rec.Num)
			case KindBool:
				w.Value = Bool(rec.Num != 0)
			}
		case WordType:
			t, err := lookup(rec.Type)
			if err != nil {
				return nil, 0, err
			}
			w.Type = t
		case WordString:
			w.Str = rec.Str
		default:
			return nil, 0, fmt.Errorf("image: bad word kind %d at %04d", rec.Kind, i)
		}
		code[i] = w
	}
	if err := Validate(code); err != nil {
		return nil, 0, fmt.Errorf("image: %w", err)
	}
	for i := range addressOperands(code) {
		code[i].Int += base
	}
	return code, img.Entry + base, nil
}

// addressOperands returns the indices of operand words holding code
// addresses. code must be a valid instruction stream.
func addressOperands(code []Word) map[int]bool {
	out := make(map[int]bool)
	for i := 0; i < len(code); i += code[i].Op.InstructionLen() {
		switch code[i].Op {
		case OpJmp, OpJmpF:
			out[i+1] = true
		case OpClosure:
			out[i+2] = true
		}
	}
	return out
}
