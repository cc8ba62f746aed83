package device

import "testing"

func boolPtr(b bool) *bool {
	return &b
}

func TestMapRawToDisplayState(t *testing.T) {
	tests := []struct {
		name       string
		deviceType Type
		raw        RawState
		want       DisplayState
		wantOK     bool
	}{
		{
			name:       "door sensor open",
			deviceType: TypeDoorSensor,
			raw:        RawState{State: "open"},
			want:       DisplayStateOpen,
			wantOK:     true,
		},
		{
			name:       "door sensor closed",
			deviceType: TypeDoorSensor,
			raw:        RawState{State: "closed"},
			want:       DisplayStateClosed,
			wantOK:     true,
		},
		{
			name:       "door sensor mixed case with whitespace",
			deviceType: TypeDoorSensor,
			raw:        RawState{State: " Open "},
			want:       DisplayStateOpen,
			wantOK:     true,
		},
		{
			name:       "motion sensor alert",
			deviceType: TypeMotionSensor,
			raw:        RawState{State: "alert"},
			want:       DisplayStateMotion,
			wantOK:     true,
		},
		{
			name:       "motion sensor normal",
			deviceType: TypeMotionSensor,
			raw:        RawState{State: "normal"},
			want:       DisplayStateIdle,
			wantOK:     true,
		},
		{
			name:       "leak sensor alert",
			deviceType: TypeLeakSensor,
			raw:        RawState{State: "alert"},
			want:       DisplayStateLeak,
			wantOK:     true,
		},
		{
			name:       "leak sensor dry",
			deviceType: TypeLeakSensor,
			raw:        RawState{State: "dry"},
			want:       DisplayStateDry,
			wantOK:     true,
		},
		{
			name:       "switch on",
			deviceType: TypeSwitch,
			raw:        RawState{State: "on"},
			want:       DisplayStateOn,
			wantOK:     true,
		},
		{
			name:       "outlet off",
			deviceType: TypeOutlet,
			raw:        RawState{State: "off"},
			want:       DisplayStateOff,
			wantOK:     true,
		},
		{
			name:       "access door locked",
			deviceType: TypeDoor,
			raw:        RawState{State: "locked"},
			want:       DisplayStateLocked,
			wantOK:     true,
		},
		{
			name:       "access door unlocked",
			deviceType: TypeDoor,
			raw:        RawState{State: "unlocked"},
			want:       DisplayStateUnlocked,
			wantOK:     true,
		},
		{
			name:       "camera online",
			deviceType: TypeCamera,
			raw:        RawState{State: "online"},
			want:       DisplayStateOnline,
			wantOK:     true,
		},
		{
			name:       "server offline",
			deviceType: TypeServer,
			raw:        RawState{State: "offline"},
			want:       DisplayStateOffline,
			wantOK:     true,
		},
		{
			name:       "explicit online false overrides raw state",
			deviceType: TypeDoorSensor,
			raw:        RawState{State: "open", Online: boolPtr(false)},
			want:       DisplayStateOffline,
			wantOK:     true,
		},
		{
			name:       "explicit online true does not override raw state",
			deviceType: TypeDoorSensor,
			raw:        RawState{State: "open", Online: boolPtr(true)},
			want:       DisplayStateOpen,
			wantOK:     true,
		},
		{
			name:       "unknown raw state is unmapped",
			deviceType: TypeDoorSensor,
			raw:        RawState{State: "ajar"},
			want:       "",
			wantOK:     false,
		},
		{
			name:       "empty raw state is unmapped",
			deviceType: TypeDoorSensor,
			raw:        RawState{State: ""},
			want:       "",
			wantOK:     false,
		},
		{
			name:       "raw state valid for different type is unmapped",
			deviceType: TypeMotionSensor,
			raw:        RawState{State: "locked"},
			want:       "",
			wantOK:     false,
		},
		{
			name:       "unknown device type is unmapped",
			deviceType: Type("thermostat"),
			raw:        RawState{State: "on"},
			want:       "",
			wantOK:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MapRawToDisplayState(tt.deviceType, tt.raw)
			if ok != tt.wantOK {
				t.Errorf("MapRawToDisplayState(%s, %+v) ok = %v, want %v", tt.deviceType, tt.raw, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("MapRawToDisplayState(%s, %+v) = %q, want %q", tt.deviceType, tt.raw, got, tt.want)
			}
		})
	}
}

func TestMapRawToDisplayStateAlwaysCanonical(t *testing.T) {
	// Every mapped result must be a member of the canonical set.
	rawStates := []string{
		"open", "closed", "close", "on", "off", "alert", "normal",
		"locked", "unlocked", "online", "offline", "dry", "full",
		"motion", "idle", "leak", "recording", "unauthorized",
	}

	for _, dt := range AllTypes() {
		for _, raw := range rawStates {
			got, ok := MapRawToDisplayState(dt, RawState{State: raw})
			if !ok {
				continue
			}
			if !got.IsValid() {
				t.Errorf("MapRawToDisplayState(%s, %q) = %q, not a canonical display state", dt, raw, got)
			}
		}
	}
}

func TestDeviceDeepCopy(t *testing.T) {
	model := "DoorSensor-01"
	d := &Device{
		ID:          "dev-1",
		ConnectorID: "conn-1",
		DeviceID:    "ext-1",
		Name:        "Front Door",
		Type:        TypeDoorSensor,
		Status:      DisplayStateClosed,
		Model:       &model,
		Raw:         map[string]any{"state": "closed", "battery": 4},
	}

	copied := d.DeepCopy()

	copied.Name = "Back Door"
	*copied.Model = "Changed"
	copied.Raw["state"] = "open"

	if d.Name != "Front Door" {
		t.Errorf("original name mutated: %q", d.Name)
	}
	if *d.Model != "DoorSensor-01" {
		t.Errorf("original model mutated: %q", *d.Model)
	}
	if d.Raw["state"] != "closed" {
		t.Errorf("original raw payload mutated: %v", d.Raw["state"])
	}
}
