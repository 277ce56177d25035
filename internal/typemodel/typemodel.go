// Package typemodel holds the static, versioned descriptors of every entity
// type the client touches. The tables drive request routing (app prefix and
// model version header), response decryption (which attributes are
// encrypted, and under which owner attributes the session key travels), and
// scalar coercion of decrypted bytes.
package typemodel

import "fmt"

// ValueType is the declared scalar type of a value attribute.
type ValueType int

const (
	// TypeString is a UTF-8 string.
	TypeString ValueType = iota
	// TypeNumber is an integer, textual on the wire.
	TypeNumber
	// TypeDate is a timestamp in milliseconds since the epoch.
	TypeDate
	// TypeBoolean is a flag; "0" means false.
	TypeBoolean
	// TypeBytes is raw bytes, base64 on the wire.
	TypeBytes
	// TypeCompressedString is a string stored compressed server-side.
	TypeCompressedString
)

func (v ValueType) String() string {
	switch v {
	case TypeString:
		return "String"
	case TypeNumber:
		return "Number"
	case TypeDate:
		return "Date"
	case TypeBoolean:
		return "Boolean"
	case TypeBytes:
		return "Bytes"
	case TypeCompressedString:
		return "CompressedString"
	default:
		return fmt.Sprintf("ValueType(%d)", int(v))
	}
}

// Value describes one value attribute of a type.
type Value struct {
	// ID is the numeric attribute id, textual on the wire.
	ID string
	// Type is the declared scalar type.
	Type ValueType
	// Encrypted marks attributes carried under the instance session key.
	Encrypted bool
}

// Type is the immutable model of one entity type. Attribute ids present on
// the wire but absent from Values are associations (list refs, tuple refs,
// aggregations) and pass through untouched.
type Type struct {
	// App is the routing prefix of the owning application.
	App string
	// Name is the entity type name.
	Name string
	// Version is the model version sent as the "v" request header.
	Version string
	// Encrypted marks types that carry encrypted attributes.
	Encrypted bool
	// Values maps numeric attribute id to its descriptor.
	Values map[string]Value

	// Owner attribute ids for encrypted types: the group owning the
	// instance, the wrapped session key, and the group key version the
	// session key was wrapped under. Empty for unencrypted types.
	OwnerGroup         string
	OwnerEncSessionKey string
	OwnerKeyVersion    string
}

func values(vs ...Value) map[string]Value {
	m := make(map[string]Value, len(vs))
	for _, v := range vs {
		m[v.ID] = v
	}
	return m
}
