package model

import (
	"fmt"
	"strings"
)

// Kind classifies engine objects. It replaces the engine's run-time type
// tags; conversion happens at the boundary via ParseKind and String.
type Kind uint8

const (
	KindNone Kind = iota
	KindInfantry
	KindUnit
	KindAircraft
	KindBuilding
	KindVessel
	KindTerrain
	KindAnimation
	KindBullet
	KindOverlay
	KindSmudge
	KindSpecial // super weapon sidebar entries
)

var kindNames = [...]string{
	KindNone:      "none",
	KindInfantry:  "infantry",
	KindUnit:      "unit",
	KindAircraft:  "aircraft",
	KindBuilding:  "building",
	KindVessel:    "vessel",
	KindTerrain:   "terrain",
	KindAnimation: "animation",
	KindBullet:    "bullet",
	KindOverlay:   "overlay",
	KindSmudge:    "smudge",
	KindSpecial:   "special",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind accepts the lowercase names produced by String.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return KindNone, fmt.Errorf("unknown object kind %q", s)
}

// IsTechno reports whether objects of this kind can be owned by a house.
func (k Kind) IsTechno() bool {
	switch k {
	case KindInfantry, KindUnit, KindAircraft, KindBuilding, KindVessel:
		return true
	}
	return false
}

// Buildable reports whether the kind appears on a sidebar.
func (k Kind) Buildable() bool {
	return k.IsTechno() || k == KindSpecial
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ObjectRef addresses an engine object by kind and id. House is the owner
// when known, HouseNone otherwise.
type ObjectRef struct {
	Kind  Kind    `json:"kind"`
	ID    int     `json:"id"`
	House HouseID `json:"house"`
}
