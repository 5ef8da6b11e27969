// Package callerinfo builds the per-request caller Scope (§3, §4.2): the immutable
// (user_id, owner_type, owner_bytes, app_index, group_id) tuple that drives every DB
// filter and every HSM key alias for the lifetime of a request.
package callerinfo

import (
	"fmt"

	"github.com/armorclaw/assetstore/internal/asseterr"
	"github.com/armorclaw/assetstore/internal/assettype"
)

// SystemUserMax is the inclusive upper bound of the "system user" id space (§3
// invariant 5): accessibility other than DevicePowerOn is rejected for these users.
const SystemUserMax = 99

// InteractAcrossAccountsPermission is the permission string gating a system app's
// ability to override user_id on a request (§4.2, §6.3).
const InteractAcrossAccountsPermission = "ohos.permission.INTERACT_ACROSS_LOCAL_ACCOUNTS"

// PersistentDataPermission gates IsPersistent=true on Add (§6.3).
const PersistentDataPermission = "ohos.permission.STORE_PERSISTENT_DATA"

// Identity is what the CallerResolver capability (§1, deliberately external)
// resolves from a raw calling uid/token. Production wiring wraps the host's
// account/bundle manager; this package only consumes the interface.
type Identity struct {
	UserID          int32
	OwnerType       assettype.OwnerType
	BundleName      string // Hap
	ProcessName     string // Native
	AppIndex        uint32
	IsSystemApp     bool
	Permissions     map[string]bool
	SpecificAllowed bool // caller may use Tag.SpecificUserId (system app + permission)
}

// Resolver is the abstract CallerResolver capability (§1).
type Resolver interface {
	Resolve(callingUID uint64) (Identity, error)
}

// Scope is the immutable per-request caller tuple (§3 "Caller scope").
type Scope struct {
	UserID    int32
	OwnerType assettype.OwnerType
	Owner     []byte
	AppIndex  uint32
	GroupID   []byte // nil when absent
}

// Key returns a value usable as a map key for equality comparisons (session cache,
// tests). It is NOT the HSM key alias (see internal/keystore for that derivation).
func (s Scope) Key() string {
	return fmt.Sprintf("%d|%d|%x|%x", s.UserID, s.OwnerType, s.Owner, s.GroupID)
}

// Build derives owner bytes from ident exactly as §4.2 specifies, then applies the
// optional user_id override (only permitted for a system app holding
// INTERACT_ACROSS_LOCAL_ACCOUNTS, and only into the 0..=99 system range).
func Build(ident Identity, userIDOverride *int32, groupID []byte) (Scope, error) {
	owner, err := ownerBytes(ident)
	if err != nil {
		return Scope{}, err
	}

	userID := ident.UserID
	if userIDOverride != nil {
		if !ident.IsSystemApp || !ident.Permissions[InteractAcrossAccountsPermission] {
			return Scope{}, asseterr.New(asseterr.PermissionDenied, "user_id override requires a system app holding %s", InteractAcrossAccountsPermission)
		}
		if *userIDOverride < 0 || *userIDOverride > SystemUserMax {
			return Scope{}, asseterr.New(asseterr.InvalidArgument, "user_id override %d outside system range 0..=%d", *userIDOverride, SystemUserMax)
		}
		userID = *userIDOverride
	}

	return Scope{
		UserID:    userID,
		OwnerType: ident.OwnerType,
		Owner:     owner,
		AppIndex:  ident.AppIndex,
		GroupID:   groupID,
	}, nil
}

// ownerBytes implements the two wire encodings of §4.2: Hap -> "<bundle>_<index>",
// Native -> "<uid><processName>" (here: the resolved identity already carries the
// numeric uid folded into ProcessName's caller-side representation, since the core
// never re-derives uid itself — it only consumes what CallerResolver handed back).
func ownerBytes(ident Identity) ([]byte, error) {
	switch ident.OwnerType {
	case assettype.OwnerHap, assettype.OwnerHapGroup:
		if ident.BundleName == "" {
			return nil, asseterr.New(asseterr.InvalidArgument, "Hap caller missing bundle name")
		}
		return []byte(fmt.Sprintf("%s_%d", ident.BundleName, ident.AppIndex)), nil
	case assettype.OwnerNative:
		if ident.ProcessName == "" {
			return nil, asseterr.New(asseterr.InvalidArgument, "Native caller missing process name")
		}
		return []byte(ident.ProcessName), nil
	default:
		return nil, asseterr.New(asseterr.InvalidArgument, "unrecognized owner type %s", ident.OwnerType)
	}
}
