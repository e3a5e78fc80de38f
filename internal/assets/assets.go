// The assets package loads the static game data the server needs to validate
// client intents: unit stats, the fixed movement paths per species and lane,
// and the map boundary polygons. Assets are read once at boot; a missing or
// malformed file is fatal.
package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	unitsFileName  = "units.json"
	pathsFileName  = "paths.json"
	boundsFileName = "map.json"
)

// Unit roles.
const (
	RoleNormal = "normal"
	RoleHealer = "healer"
	RoleBuffer = "buffer"
)

// Species names used as asset keys.
const (
	SpeciesCat = "cat"
	SpeciesDog = "dog"
)

// Point is a location on the map plane.
type Point struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// UnitAsset holds the static stats for a spawnable unit.
type UnitAsset struct {
	ID             uint32  `json:"id"`
	Species        string  `json:"species"`
	Role           string  `json:"role"`
	MaxHP          int32   `json:"maxHp"`
	Attack         int32   `json:"atk"`
	Defense        int32   `json:"def"`
	Speed          float64 `json:"spd"`
	AttackCooldown int64   `json:"attackCooldownMs"`
	SkillCooldown  int64   `json:"skillCooldownMs"`
	Cost           int32   `json:"cost"`
}

// BuildingAsset holds the static stats for a purchasable building.
type BuildingAsset struct {
	ID   uint32 `json:"id"`
	Cost int32  `json:"cost"`
	// Additional minerals per accrual tick granted by the building.
	MineralRateBonus int32 `json:"mineralRateBonus"`
}

// MapBounds describes the playable area: positions must fall inside the
// outer polygon and, for the donut-shaped arena, outside the inner polygon.
type MapBounds struct {
	Outer []Point `json:"outer"`
	Inner []Point `json:"inner"`
	// Z coordinate of the line separating the top and bottom lanes.
	CenterLine float64 `json:"centerLine"`
}

type pathsFile struct {
	// species -> lane ("up"/"down") -> ordered waypoints
	Paths map[string]map[string][]Point `json:"paths"`
}

type unitsFile struct {
	Units     []UnitAsset     `json:"units"`
	Buildings []BuildingAsset `json:"buildings"`
}

// Store is the read-only asset catalog shared by all matches.
type Store struct {
	units     map[uint32]UnitAsset
	buildings map[uint32]BuildingAsset
	paths     map[string]map[string][]Point
	bounds    MapBounds
}

// Load reads all asset files under dir.
func Load(dir string) (*Store, error) {
	var units unitsFile
	if err := readJSONFile(filepath.Join(dir, unitsFileName), &units); err != nil {
		return nil, err
	}

	var paths pathsFile
	if err := readJSONFile(filepath.Join(dir, pathsFileName), &paths); err != nil {
		return nil, err
	}

	var bounds MapBounds
	if err := readJSONFile(filepath.Join(dir, boundsFileName), &bounds); err != nil {
		return nil, err
	}
	if len(bounds.Outer) < 3 {
		return nil, fmt.Errorf("%s: outer boundary needs at least 3 vertices", boundsFileName)
	}

	store := &Store{
		units:     make(map[uint32]UnitAsset, len(units.Units)),
		buildings: make(map[uint32]BuildingAsset, len(units.Buildings)),
		paths:     paths.Paths,
		bounds:    bounds,
	}
	for _, unit := range units.Units {
		store.units[unit.ID] = unit
	}
	for _, building := range units.Buildings {
		store.buildings[building.ID] = building
	}
	return store, nil
}

func readJSONFile(path string, target interface{}) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading asset file %s: %w", path, err)
	}
	if err := json.Unmarshal(contents, target); err != nil {
		return fmt.Errorf("error parsing asset file %s: %w", path, err)
	}
	return nil
}

// UnitByID returns the stats for a unit asset, or false if the id is not
// part of the catalog.
func (s *Store) UnitByID(id uint32) (UnitAsset, bool) {
	unit, ok := s.units[id]
	return unit, ok
}

// BuildingByID returns the stats for a building asset.
func (s *Store) BuildingByID(id uint32) (BuildingAsset, bool) {
	building, ok := s.buildings[id]
	return building, ok
}

// Path returns the ordered waypoint list a unit of the given species follows
// on the given lane ("up" or "down").
func (s *Store) Path(species string, toTop bool) ([]Point, bool) {
	lanes, ok := s.paths[species]
	if !ok {
		return nil, false
	}
	lane := "down"
	if toTop {
		lane = "up"
	}
	path, ok := lanes[lane]
	if !ok || len(path) == 0 {
		return nil, false
	}
	return path, true
}

// Bounds returns the map boundary polygons.
func (s *Store) Bounds() MapBounds {
	return s.bounds
}
