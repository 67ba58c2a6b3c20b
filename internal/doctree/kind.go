package doctree

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of documented entity categories. Unknown kinds are
// rejected at load time so every switch over Kind can be total.
type Kind uint8

const (
	KindModule Kind = iota
	KindException
	KindTask
	KindFunction
	KindMacro
	KindCallback
	KindMacroCallback
	KindGuard
	KindType
	KindOpaque
	KindImpl
)

var kindNames = map[Kind]string{
	KindModule:        "module",
	KindException:     "exception",
	KindTask:          "task",
	KindFunction:      "function",
	KindMacro:         "macro",
	KindCallback:      "callback",
	KindMacroCallback: "macrocallback",
	KindGuard:         "guard",
	KindType:          "type",
	KindOpaque:        "opaque",
	KindImpl:          "impl",
}

var kindValues = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// ParseKind maps a kind name to its enum value. Names outside the closed set
// are an error, never a silent default.
func ParseKind(s string) (Kind, error) {
	if k, ok := kindValues[s]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Bucket is the NodesMap partition a top-level node lands in.
type Bucket uint8

const (
	BucketNone Bucket = iota // excluded from the partition entirely
	BucketModules
	BucketExceptions
	BucketTasks
)

func (b Bucket) String() string {
	switch b {
	case BucketModules:
		return "modules"
	case BucketExceptions:
		return "exceptions"
	case BucketTasks:
		return "tasks"
	default:
		return "none"
	}
}

// Bucket returns the partition membership for a node of this kind:
// exceptions and tasks get their own buckets, impl nodes are excluded, and
// every remaining kind belongs to the modules bucket.
func (k Kind) Bucket() Bucket {
	switch k {
	case KindException:
		return BucketExceptions
	case KindTask:
		return BucketTasks
	case KindImpl:
		return BucketNone
	case KindModule, KindFunction, KindMacro, KindCallback, KindMacroCallback,
		KindGuard, KindType, KindOpaque:
		return BucketModules
	default:
		return BucketNone
	}
}

// RefPrefix returns the reference-id prefix used when this kind is the target
// of a cross-reference: callbacks get "c:", type definitions "t:", and every
// other kind a bare id.
func (k Kind) RefPrefix() string {
	switch k {
	case KindCallback, KindMacroCallback:
		return "c:"
	case KindType, KindOpaque:
		return "t:"
	case KindModule, KindException, KindTask, KindFunction, KindMacro,
		KindGuard, KindImpl:
		return ""
	default:
		return ""
	}
}

// TitleSuffix returns the parenthetical annotation for headings of this kind,
// or "" when the heading stands alone.
func (k Kind) TitleSuffix() string {
	switch k {
	case KindException:
		return "exception"
	case KindTask:
		return "task"
	case KindMacro:
		return "macro"
	case KindCallback:
		return "callback"
	case KindMacroCallback:
		return "macrocallback"
	case KindGuard:
		return "guard"
	case KindType:
		return "type"
	case KindOpaque:
		return "opaque"
	case KindModule, KindFunction, KindImpl:
		return ""
	default:
		return ""
	}
}

// MarshalJSON encodes the kind as its canonical name.
func (k Kind) MarshalJSON() ([]byte, error) {
	n, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("cannot marshal invalid kind %d", uint8(k))
	}
	return json.Marshal(n)
}

// UnmarshalJSON decodes and validates a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
