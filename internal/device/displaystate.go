package device

import "strings"

// DisplayState is the canonical, vendor-agnostic state label for a device.
// Device status and event display states always come from this set; raw
// vendor strings never leave the mapping layer.
type DisplayState string

const (
	DisplayStateOpen     DisplayState = "Open"
	DisplayStateClosed   DisplayState = "Closed"
	DisplayStateOn       DisplayState = "On"
	DisplayStateOff      DisplayState = "Off"
	DisplayStateLocked   DisplayState = "Locked"
	DisplayStateUnlocked DisplayState = "Unlocked"
	DisplayStateMotion   DisplayState = "Motion"
	DisplayStateIdle     DisplayState = "Idle"
	DisplayStateLeak     DisplayState = "Leak"
	DisplayStateDry      DisplayState = "Dry"
	DisplayStateOnline   DisplayState = "Online"
	DisplayStateOffline  DisplayState = "Offline"
)

// AllDisplayStates returns all canonical display states.
func AllDisplayStates() []DisplayState {
	return []DisplayState{
		DisplayStateOpen, DisplayStateClosed,
		DisplayStateOn, DisplayStateOff,
		DisplayStateLocked, DisplayStateUnlocked,
		DisplayStateMotion, DisplayStateIdle,
		DisplayStateLeak, DisplayStateDry,
		DisplayStateOnline, DisplayStateOffline,
	}
}

// IsValid reports whether the display state is a canonical value.
func (s DisplayState) IsValid() bool {
	_, ok := validDisplayStates[s]
	return ok
}

var validDisplayStates map[DisplayState]struct{}

func init() {
	validDisplayStates = make(map[DisplayState]struct{}, len(AllDisplayStates()))
	for _, s := range AllDisplayStates() {
		validDisplayStates[s] = struct{}{}
	}
}

// Intermediate typed states. Each vendor's raw vocabulary is first parsed
// into one of these, then resolved to a DisplayState through
// canonicalStateMap. Keeping the intermediate layer separate means a new
// vendor only has to supply raw-to-intermediate rules.

// ContactState is the intermediate state for contact (door/window) sensors.
type ContactState string

const (
	ContactOpen   ContactState = "open"
	ContactClosed ContactState = "closed"
)

// BinaryState is the intermediate state for switches and outlets.
type BinaryState string

const (
	BinaryOn  BinaryState = "on"
	BinaryOff BinaryState = "off"
)

// LockStatus is the intermediate state for access-control doors.
type LockStatus string

const (
	LockLocked   LockStatus = "locked"
	LockUnlocked LockStatus = "unlocked"
)

// MotionState is the intermediate state for motion sensors.
type MotionState string

const (
	MotionDetected MotionState = "motion"
	MotionIdle     MotionState = "idle"
)

// LeakState is the intermediate state for water leak sensors.
type LeakState string

const (
	LeakDetected LeakState = "leak"
	LeakDry      LeakState = "dry"
)

// OnlineStatus is the intermediate state for connectivity.
type OnlineStatus string

const (
	StatusOnline  OnlineStatus = "online"
	StatusOffline OnlineStatus = "offline"
)

// canonicalStateMap resolves every intermediate state to its DisplayState.
var canonicalStateMap = map[any]DisplayState{
	ContactOpen:    DisplayStateOpen,
	ContactClosed:  DisplayStateClosed,
	BinaryOn:       DisplayStateOn,
	BinaryOff:      DisplayStateOff,
	LockLocked:     DisplayStateLocked,
	LockUnlocked:   DisplayStateUnlocked,
	MotionDetected: DisplayStateMotion,
	MotionIdle:     DisplayStateIdle,
	LeakDetected:   DisplayStateLeak,
	LeakDry:        DisplayStateDry,
	StatusOnline:   DisplayStateOnline,
	StatusOffline:  DisplayStateOffline,
}

// RawState carries a vendor's raw state report into the mapping layer.
type RawState struct {
	// State is the vendor's raw state string ("open", "alert", "normal", ...).
	State string

	// Online, when non-nil, is the vendor's explicit connectivity flag.
	// An explicit false always maps to Offline regardless of State.
	Online *bool
}

// MapRawToDisplayState translates a vendor's raw state report into the
// canonical DisplayState for a device of the given standardised type.
//
// Returns ("", false) when the raw value has no mapping. Callers must
// treat that as a warning, not an error, and leave the device's previous
// stored status unchanged. The function never fails on unknown input.
func MapRawToDisplayState(deviceType Type, raw RawState) (DisplayState, bool) {
	if raw.Online != nil && !*raw.Online {
		return DisplayStateOffline, true
	}

	state := strings.ToLower(strings.TrimSpace(raw.State))
	if state == "" {
		return "", false
	}

	intermediate, ok := rawToIntermediate(deviceType, state)
	if !ok {
		return "", false
	}

	display, ok := canonicalStateMap[intermediate]
	return display, ok
}

// rawToIntermediate applies the per-type raw vocabulary rules.
func rawToIntermediate(deviceType Type, state string) (any, bool) {
	switch deviceType {
	case TypeDoorSensor:
		switch state {
		case "open":
			return ContactOpen, true
		case "closed", "close":
			return ContactClosed, true
		}

	case TypeMotionSensor:
		switch state {
		case "alert", "motion":
			return MotionDetected, true
		case "normal", "idle":
			return MotionIdle, true
		}

	case TypeLeakSensor:
		switch state {
		case "alert", "full", "leak":
			return LeakDetected, true
		case "normal", "dry", "empty":
			return LeakDry, true
		}

	case TypeSwitch, TypeOutlet:
		switch state {
		case "on", "open":
			return BinaryOn, true
		case "off", "closed", "close":
			return BinaryOff, true
		}

	case TypeDoor:
		switch state {
		case "locked", "lock":
			return LockLocked, true
		case "unlocked", "unlock":
			return LockUnlocked, true
		case "online":
			return StatusOnline, true
		case "offline":
			return StatusOffline, true
		}

	case TypeCamera, TypeServer, TypeHub:
		switch state {
		case "online", "recording":
			return StatusOnline, true
		case "offline", "unauthorized", "incompatible", "mismatchedcertificate", "not defined":
			return StatusOffline, true
		}
	}

	return nil, false
}
