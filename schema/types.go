package schema

import "strings"

// Type identifies how a field is laid out in a container.
type Type byte

const (
	TypeInvalid Type = iota
	TypeUndefined
	TypeObject
	TypeUserData
	TypeAction
	TypeBool
	TypeC8
	TypeC16
	TypeS8
	TypeU8
	TypeS16
	TypeU16
	TypeS32
	TypeU32
	TypeS64
	TypeU64
	TypeF8
	TypeF16
	TypeF32
	TypeF64
	TypeString
	TypeMBString
	TypeResource
	TypeRuntimeType
	TypeEnum
	TypeInt2
	TypeInt3
	TypeInt4
	TypeUint2
	TypeUint3
	TypeUint4
	TypeFloat2
	TypeFloat3
	TypeFloat4
	TypeHalf2
	TypeHalf4
	TypeVec2
	TypeVec3
	TypeVec4
	TypeVecU4
	TypeQuaternion
	TypeMat3
	TypeMat4
	TypeFloat3x3
	TypeFloat3x4
	TypeFloat4x3
	TypeFloat4x4
	TypeGuid
	TypeGameObjectRef
	TypeUri
	TypeColor
	TypeDateTime
	TypeAABB
	TypeOBB
	TypeCapsule
	TypeTaperedCapsule
	TypeCone
	TypeCylinder
	TypeEllipsoid
	TypeSphere
	TypeTorus
	TypeTriangle
	TypeLine
	TypeLineSegment
	TypeSegment
	TypeRay
	TypeRayY
	TypePlane
	TypePlaneXZ
	TypePoint
	TypeSize
	TypeRange
	TypeRangeI
	TypeRect
	TypeRect3D
	TypeArea
	TypeFrustum
	TypeKeyFrame
	TypePosition
	TypeSfix
	TypeSfix2
	TypeSfix3
	TypeSfix4
	TypeData
	typeCount
)

// Kind describes the Go representation of values of a Type.
type Kind byte

const (
	KindInvalid     Kind = iota
	KindBool             // bool
	KindInt              // signed integer of Width bytes
	KindUint             // unsigned integer of Width bytes
	KindFloat            // IEEE float of Width bytes
	KindString           // UTF-16 string with a unit-count prefix
	KindRuntimeType      // ASCII type name with a byte-count prefix
	KindReference        // instance index
	KindGUID             // 16 raw bytes
	KindVector           // Lanes float32 values
	KindVector64         // Lanes float64 values
	KindIntVector        // Lanes int32 values
	KindUintVector       // Lanes uint32 values
	KindRaw              // opaque bytes
)

type typeInfo struct {
	name  string
	size  int
	align int
	kind  Kind
	width int // bytes per scalar or lane
	lanes int
}

var typeInfos = [typeCount]typeInfo{
	TypeInvalid:        {"Invalid", 0, 1, KindInvalid, 0, 0},
	TypeUndefined:      {"Undefined", 0, 1, KindRaw, 1, 0},
	TypeObject:         {"Object", 4, 4, KindReference, 4, 1},
	TypeUserData:       {"UserData", 4, 4, KindReference, 4, 1},
	TypeAction:         {"Action", 4, 4, KindReference, 4, 1},
	TypeBool:           {"Bool", 1, 1, KindBool, 1, 1},
	TypeC8:             {"C8", 1, 1, KindUint, 1, 1},
	TypeC16:            {"C16", 2, 2, KindUint, 2, 1},
	TypeS8:             {"S8", 1, 1, KindInt, 1, 1},
	TypeU8:             {"U8", 1, 1, KindUint, 1, 1},
	TypeS16:            {"S16", 2, 2, KindInt, 2, 1},
	TypeU16:            {"U16", 2, 2, KindUint, 2, 1},
	TypeS32:            {"S32", 4, 4, KindInt, 4, 1},
	TypeU32:            {"U32", 4, 4, KindUint, 4, 1},
	TypeS64:            {"S64", 8, 8, KindInt, 8, 1},
	TypeU64:            {"U64", 8, 8, KindUint, 8, 1},
	TypeF8:             {"F8", 1, 1, KindRaw, 1, 1},
	TypeF16:            {"F16", 2, 2, KindRaw, 2, 1},
	TypeF32:            {"F32", 4, 4, KindFloat, 4, 1},
	TypeF64:            {"F64", 8, 8, KindFloat, 8, 1},
	TypeString:         {"String", 4, 4, KindString, 2, 1},
	TypeMBString:       {"MBString", 4, 4, KindString, 2, 1},
	TypeResource:       {"Resource", 4, 4, KindString, 2, 1},
	TypeRuntimeType:    {"RuntimeType", 4, 4, KindRuntimeType, 1, 1},
	TypeEnum:           {"Enum", 4, 4, KindInt, 4, 1},
	TypeInt2:           {"Int2", 8, 4, KindIntVector, 4, 2},
	TypeInt3:           {"Int3", 12, 4, KindIntVector, 4, 3},
	TypeInt4:           {"Int4", 16, 4, KindIntVector, 4, 4},
	TypeUint2:          {"Uint2", 8, 4, KindUintVector, 4, 2},
	TypeUint3:          {"Uint3", 12, 4, KindUintVector, 4, 3},
	TypeUint4:          {"Uint4", 16, 4, KindUintVector, 4, 4},
	TypeFloat2:         {"Float2", 8, 4, KindVector, 4, 2},
	TypeFloat3:         {"Float3", 12, 4, KindVector, 4, 3},
	TypeFloat4:         {"Float4", 16, 4, KindVector, 4, 4},
	TypeHalf2:          {"Half2", 4, 2, KindRaw, 4, 1},
	TypeHalf4:          {"Half4", 8, 2, KindRaw, 8, 1},
	TypeVec2:           {"Vec2", 16, 16, KindVector, 4, 2},
	TypeVec3:           {"Vec3", 16, 16, KindVector, 4, 3},
	TypeVec4:           {"Vec4", 16, 16, KindVector, 4, 4},
	TypeVecU4:          {"VecU4", 16, 16, KindUintVector, 4, 4},
	TypeQuaternion:     {"Quaternion", 16, 16, KindVector, 4, 4},
	TypeMat3:           {"Mat3", 48, 16, KindVector, 4, 12},
	TypeMat4:           {"Mat4", 64, 16, KindVector, 4, 16},
	TypeFloat3x3:       {"Float3x3", 36, 4, KindVector, 4, 9},
	TypeFloat3x4:       {"Float3x4", 48, 4, KindVector, 4, 12},
	TypeFloat4x3:       {"Float4x3", 48, 4, KindVector, 4, 12},
	TypeFloat4x4:       {"Float4x4", 64, 16, KindVector, 4, 16},
	TypeGuid:           {"Guid", 16, 8, KindGUID, 16, 1},
	TypeGameObjectRef:  {"GameObjectRef", 16, 8, KindGUID, 16, 1},
	TypeUri:            {"Uri", 16, 8, KindGUID, 16, 1},
	TypeColor:          {"Color", 4, 4, KindUint, 4, 1},
	TypeDateTime:       {"DateTime", 8, 8, KindInt, 8, 1},
	TypeAABB:           {"AABB", 32, 16, KindVector, 4, 8},
	TypeOBB:            {"OBB", 80, 16, KindVector, 4, 20},
	TypeCapsule:        {"Capsule", 48, 16, KindVector, 4, 12},
	TypeTaperedCapsule: {"TaperedCapsule", 48, 16, KindVector, 4, 12},
	TypeCone:           {"Cone", 32, 16, KindVector, 4, 8},
	TypeCylinder:       {"Cylinder", 48, 16, KindVector, 4, 12},
	TypeEllipsoid:      {"Ellipsoid", 32, 16, KindVector, 4, 8},
	TypeSphere:         {"Sphere", 16, 16, KindVector, 4, 4},
	TypeTorus:          {"Torus", 32, 16, KindVector, 4, 8},
	TypeTriangle:       {"Triangle", 48, 16, KindVector, 4, 12},
	TypeLine:           {"Line", 32, 16, KindVector, 4, 8},
	TypeLineSegment:    {"LineSegment", 32, 16, KindVector, 4, 8},
	TypeSegment:        {"Segment", 32, 16, KindVector, 4, 8},
	TypeRay:            {"Ray", 32, 16, KindVector, 4, 8},
	TypeRayY:           {"RayY", 16, 16, KindVector, 4, 4},
	TypePlane:          {"Plane", 16, 16, KindVector, 4, 4},
	TypePlaneXZ:        {"PlaneXZ", 4, 4, KindVector, 4, 1},
	TypePoint:          {"Point", 8, 4, KindVector, 4, 2},
	TypeSize:           {"Size", 8, 4, KindVector, 4, 2},
	TypeRange:          {"Range", 8, 4, KindVector, 4, 2},
	TypeRangeI:         {"RangeI", 8, 4, KindIntVector, 4, 2},
	TypeRect:           {"Rect", 16, 4, KindVector, 4, 4},
	TypeRect3D:         {"Rect3D", 48, 16, KindVector, 4, 12},
	TypeArea:           {"Area", 48, 16, KindVector, 4, 12},
	TypeFrustum:        {"Frustum", 96, 16, KindVector, 4, 24},
	TypeKeyFrame:       {"KeyFrame", 16, 4, KindVector, 4, 4},
	TypePosition:       {"Position", 24, 8, KindVector64, 8, 3},
	TypeSfix:           {"Sfix", 4, 4, KindIntVector, 4, 1},
	TypeSfix2:          {"Sfix2", 8, 4, KindIntVector, 4, 2},
	TypeSfix3:          {"Sfix3", 12, 4, KindIntVector, 4, 3},
	TypeSfix4:          {"Sfix4", 16, 4, KindIntVector, 4, 4},
	TypeData:           {"Data", 0, 1, KindRaw, 1, 0},
}

var typeNames = func() map[string]Type {
	m := make(map[string]Type, typeCount)
	for t := Type(1); t < typeCount; t++ {
		m[strings.ToLower(typeInfos[t].name)] = t
	}
	return m
}()

// ParseType returns the Type named by s. Names are matched without regard to
// case. Returns TypeInvalid if s does not name a type.
func ParseType(s string) Type {
	return typeNames[strings.ToLower(s)]
}

// Valid returns whether t is a known type.
func (t Type) Valid() bool {
	return TypeInvalid < t && t < typeCount
}

// String returns the name of the type, or "Invalid".
func (t Type) String() string {
	if !t.Valid() {
		return "Invalid"
	}
	return typeInfos[t].name
}

// Size returns the natural number of bytes occupied by a value of the type.
// Returns 0 for types whose size is determined by the field.
func (t Type) Size() int {
	if !t.Valid() {
		return 0
	}
	return typeInfos[t].size
}

// Align returns the natural alignment of the type.
func (t Type) Align() int {
	if !t.Valid() {
		return 1
	}
	return typeInfos[t].align
}

// Kind returns how values of the type are represented.
func (t Type) Kind() Kind {
	if !t.Valid() {
		return KindInvalid
	}
	return typeInfos[t].kind
}

// Width returns the number of bytes in one scalar or lane of the type.
func (t Type) Width() int {
	if !t.Valid() {
		return 0
	}
	return typeInfos[t].width
}

// Lanes returns the number of lanes of a vector type, or 1 for scalars.
func (t Type) Lanes() int {
	if !t.Valid() {
		return 0
	}
	return typeInfos[t].lanes
}

// IsReference returns whether values of the type refer to other instances.
func (t Type) IsReference() bool {
	return t.Kind() == KindReference
}

// IsString returns whether values of the type carry a length prefix and are
// therefore not of a fixed size.
func (t Type) IsString() bool {
	k := t.Kind()
	return k == KindString || k == KindRuntimeType
}

// Payload returns the number of bytes read for one value of the type when
// its size is fixed. size is the size declared by the field, which decides
// the payload of raw types.
func (t Type) Payload(size int) int {
	switch t.Kind() {
	case KindRaw:
		if t.Lanes() == 0 {
			return size
		}
		return t.Width()
	case KindString, KindRuntimeType:
		return 0
	default:
		return t.Width() * t.Lanes()
	}
}
