// Package assettype implements the typed attribute model shared by every asset
// store operation: the Tag enum, the Value union, the AttributeMap, and its wire
// codec. It is the Go reduction of the original's asset_type/back_to_enum! macro
// and definition/asset_map.rs: one source-of-truth table drives String, DataType,
// and ParseTag instead of a per-enum code-generated macro.
package assettype

import "fmt"

// DataType is the payload shape a Tag's top 4 bits select.
type DataType uint32

const (
	typeBool   DataType = 1 << 28
	typeNumber DataType = 2 << 28
	typeBytes  DataType = 3 << 28

	dataTypeMask uint32 = 0xF << 28
)

const (
	// TypeBool marks a Tag whose Value variant is Bool.
	TypeBool = typeBool
	// TypeNumber marks a Tag whose Value variant is Number.
	TypeNumber = typeNumber
	// TypeBytes marks a Tag whose Value variant is Bytes.
	TypeBytes = typeBytes
)

func (d DataType) String() string {
	switch d {
	case typeBool:
		return "Bool"
	case typeNumber:
		return "Number"
	case typeBytes:
		return "Bytes"
	default:
		return fmt.Sprintf("DataType(%#x)", uint32(d))
	}
}

// Tag identifies one attribute slot in an AttributeMap. The low 28 bits are a
// stable per-tag ordinal; the top 4 bits are the tag's DataType, exactly as in the
// original wire format, so DataType is recoverable from the numeric id alone.
type Tag uint32

// The full stable tag table. Values and data types are fixed: this is wire ABI.
const (
	Secret                Tag = typeBytes | 1
	Alias                 Tag = typeBytes | 2
	Accessibility         Tag = typeNumber | 3
	AuthType              Tag = typeNumber | 4
	SyncType              Tag = typeNumber | 5
	ConflictResolution    Tag = typeNumber | 6
	DataLabelCritical1    Tag = typeBytes | 7
	DataLabelCritical2    Tag = typeBytes | 8
	DataLabelCritical3    Tag = typeBytes | 9
	DataLabelCritical4    Tag = typeBytes | 10
	DataLabelNormal1      Tag = typeBytes | 11
	DataLabelNormal2      Tag = typeBytes | 12
	DataLabelNormal3      Tag = typeBytes | 13
	DataLabelNormal4      Tag = typeBytes | 14
	DataLabelNormalLocal1 Tag = typeBytes | 15
	DataLabelNormalLocal2 Tag = typeBytes | 16
	DataLabelNormalLocal3 Tag = typeBytes | 17
	DataLabelNormalLocal4 Tag = typeBytes | 18
	ReturnType            Tag = typeNumber | 19
	ReturnLimit           Tag = typeNumber | 20
	ReturnOffset          Tag = typeNumber | 21
	ReturnOrderBy         Tag = typeNumber | 22
	RequirePasswordSet    Tag = typeBool | 23
	AuthChallenge         Tag = typeBytes | 24
	AuthToken             Tag = typeBytes | 25
	SyncStatus            Tag = typeNumber | 26
	WrapType              Tag = typeNumber | 27
	RequireAttrEncrypted  Tag = typeBool | 28
	GroupId               Tag = typeBytes | 29
	OperationType         Tag = typeNumber | 30
	IsPersistent          Tag = typeBool | 31
	AuthValidityPeriod    Tag = typeNumber | 32
	UserId                Tag = typeNumber | 33
	UpdateTime            Tag = typeBytes | 34
	SpecificUserId        Tag = typeNumber | 35
	Version               Tag = typeNumber | 36
	StorageDistinguisher  Tag = typeNumber | 37
)

var tagNames = map[Tag]string{
	Secret: "Secret", Alias: "Alias", Accessibility: "Accessibility", AuthType: "AuthType",
	SyncType: "SyncType", ConflictResolution: "ConflictResolution",
	DataLabelCritical1: "DataLabelCritical1", DataLabelCritical2: "DataLabelCritical2",
	DataLabelCritical3: "DataLabelCritical3", DataLabelCritical4: "DataLabelCritical4",
	DataLabelNormal1: "DataLabelNormal1", DataLabelNormal2: "DataLabelNormal2",
	DataLabelNormal3: "DataLabelNormal3", DataLabelNormal4: "DataLabelNormal4",
	DataLabelNormalLocal1: "DataLabelNormalLocal1", DataLabelNormalLocal2: "DataLabelNormalLocal2",
	DataLabelNormalLocal3: "DataLabelNormalLocal3", DataLabelNormalLocal4: "DataLabelNormalLocal4",
	ReturnType: "ReturnType", ReturnLimit: "ReturnLimit", ReturnOffset: "ReturnOffset",
	ReturnOrderBy: "ReturnOrderBy", RequirePasswordSet: "RequirePasswordSet",
	AuthChallenge: "AuthChallenge", AuthToken: "AuthToken", SyncStatus: "SyncStatus",
	WrapType: "WrapType", RequireAttrEncrypted: "RequireAttrEncrypted", GroupId: "GroupId",
	OperationType: "OperationType", IsPersistent: "IsPersistent",
	AuthValidityPeriod: "AuthValidityPeriod", UserId: "UserId", UpdateTime: "UpdateTime",
	SpecificUserId: "SpecificUserId", Version: "Version",
	StorageDistinguisher: "StorageDistinguisher",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%#x)", uint32(t))
}

// DataType returns the payload shape encoded in t's top 4 bits.
func (t Tag) DataType() DataType {
	return DataType(uint32(t) & dataTypeMask)
}

// ParseTag validates that v names a known Tag, the Go reduction of the original's
// try_from(u32) derive. Unknown tag ids are always InvalidArgument at the caller.
func ParseTag(v uint32) (Tag, bool) {
	t := Tag(v)
	_, ok := tagNames[t]
	return t, ok
}

// Accessibility mirrors §3's enum; values are wire-stable.
type Accessibility uint32

const (
	DevicePowerOn       Accessibility = 0
	DeviceFirstUnlocked Accessibility = 1
	DeviceUnlocked      Accessibility = 2
)

func (a Accessibility) String() string {
	switch a {
	case DevicePowerOn:
		return "DevicePowerOn"
	case DeviceFirstUnlocked:
		return "DeviceFirstUnlocked"
	case DeviceUnlocked:
		return "DeviceUnlocked"
	default:
		return fmt.Sprintf("Accessibility(%d)", uint32(a))
	}
}

// ParseAccessibility validates a wire enum value.
func ParseAccessibility(v uint32) (Accessibility, bool) {
	switch Accessibility(v) {
	case DevicePowerOn, DeviceFirstUnlocked, DeviceUnlocked:
		return Accessibility(v), true
	default:
		return 0, false
	}
}

// AuthType mirrors §3's enum.
type AuthType uint32

const (
	AuthTypeNone AuthType = 0
	AuthTypeAny  AuthType = 1
)

func (a AuthType) String() string {
	if a == AuthTypeAny {
		return "Any"
	}
	return "None"
}

// ParseAuthType validates a wire enum value.
func ParseAuthType(v uint32) (AuthType, bool) {
	switch AuthType(v) {
	case AuthTypeNone, AuthTypeAny:
		return AuthType(v), true
	default:
		return 0, false
	}
}

// SyncType is a bitset; TrustedAccount membership is tested with Has.
type SyncType uint32

const (
	SyncNever           SyncType = 0
	SyncThisDevice      SyncType = 1 << 0
	SyncTrustedDevice   SyncType = 1 << 1
	SyncTrustedAccount  SyncType = 1 << 2
	syncTypeValidBits            = SyncThisDevice | SyncTrustedDevice | SyncTrustedAccount
)

// Has reports whether s includes bit.
func (s SyncType) Has(bit SyncType) bool { return s&bit != 0 }

// ValidSyncType reports whether v contains only recognized bits.
func ValidSyncType(v uint32) bool { return SyncType(v)&^syncTypeValidBits == 0 }

// ConflictResolution governs Add's duplicate-alias behavior.
type ConflictResolution uint32

const (
	ThrowError ConflictResolution = 0
	Overwrite  ConflictResolution = 1
)

// ParseConflictResolution validates a wire enum value.
func ParseConflictResolution(v uint32) (ConflictResolution, bool) {
	switch ConflictResolution(v) {
	case ThrowError, Overwrite:
		return ConflictResolution(v), true
	default:
		return 0, false
	}
}

// WrapType governs cross-account export; only Never is given denial-path semantics
// by spec.md (§9 Open Question 2 leaves the rest unresolved; decision in DESIGN.md).
type WrapType uint32

const (
	WrapNever WrapType = 0
)

// ReturnType selects Query's result shape.
type ReturnType uint32

const (
	ReturnAll        ReturnType = 0
	ReturnAttributes ReturnType = 1
)

// ParseReturnType validates a wire enum value.
func ParseReturnType(v uint32) (ReturnType, bool) {
	switch ReturnType(v) {
	case ReturnAll, ReturnAttributes:
		return ReturnType(v), true
	default:
		return 0, false
	}
}

// LocalStatus and SyncStatus track the row's sync-tombstone lifecycle (§3, §4.6.6).
type LocalStatus uint32

const (
	LocalStatusLocal  LocalStatus = 0
	LocalStatusSynced LocalStatus = 1
)

type SyncStatusV uint32

const (
	SyncStatusAdd SyncStatusV = 0
	SyncStatusDel SyncStatusV = 1
)

// OwnerType identifies the kind of caller a record/scope belongs to.
type OwnerType uint32

const (
	OwnerHap      OwnerType = 0
	OwnerNative   OwnerType = 1
	OwnerHapGroup OwnerType = 2
)

func (o OwnerType) String() string {
	switch o {
	case OwnerHap:
		return "Hap"
	case OwnerNative:
		return "Native"
	case OwnerHapGroup:
		return "HapGroup"
	default:
		return fmt.Sprintf("OwnerType(%d)", uint32(o))
	}
}

// OperationType drives the plugin-bus side effects of §6.4.
type OperationType uint32

const (
	OperationNone             OperationType = 0
	OperationNeedSync         OperationType = 1
	OperationNeedLogout       OperationType = 2
	OperationNeedDeleteCloud  OperationType = 3
)
