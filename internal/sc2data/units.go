// Package sc2data holds static StarCraft II unit metadata.
package sc2data

import "strings"

// Category groups unit types.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryWorker
	CategoryArmy
	CategoryBuilding
	CategoryResource
	CategoryOther
)

const (
	RaceTerran  = "Terran"
	RaceProtoss = "Protoss"
	RaceZerg    = "Zerg"
	RaceRandom  = "Random"
	RaceNeutral = "Neutral"
)

// UnitInfo describes a unit type.
type UnitInfo struct {
	Race     string
	Category Category
}

var units = map[string]UnitInfo{}

func register(race string, cat Category, names ...string) {
	for _, n := range names {
		units[n] = UnitInfo{Race: race, Category: cat}
	}
}

func init() {
	register(RaceTerran, CategoryWorker, "SCV", "MULE")
	register(RaceTerran, CategoryArmy,
		"Marine", "Marauder", "Reaper", "Ghost", "Hellion", "HellionTank", "SiegeTank", "SiegeTankSieged",
		"Cyclone", "WidowMine", "WidowMineBurrowed", "Thor", "ThorAP", "VikingFighter", "VikingAssault",
		"Medivac", "Liberator", "LiberatorAG", "Raven", "Banshee", "Battlecruiser")
	register(RaceTerran, CategoryBuilding,
		"CommandCenter", "CommandCenterFlying", "OrbitalCommand", "OrbitalCommandFlying", "PlanetaryFortress",
		"SupplyDepot", "SupplyDepotLowered", "Refinery", "RefineryRich", "Barracks", "BarracksFlying",
		"EngineeringBay", "MissileTurret", "Bunker", "SensorTower", "GhostAcademy", "Factory", "FactoryFlying",
		"Starport", "StarportFlying", "Armory", "FusionCore", "TechLab", "BarracksTechLab", "FactoryTechLab",
		"StarportTechLab", "Reactor", "BarracksReactor", "FactoryReactor", "StarportReactor")

	register(RaceProtoss, CategoryWorker, "Probe")
	register(RaceProtoss, CategoryArmy,
		"Zealot", "Stalker", "Sentry", "Adept", "HighTemplar", "DarkTemplar", "Archon", "Immortal", "Colossus",
		"Disruptor", "Observer", "ObserverSiegeMode", "WarpPrism", "WarpPrismPhasing", "Phoenix", "VoidRay",
		"Oracle", "Tempest", "Carrier", "Interceptor", "Mothership")
	register(RaceProtoss, CategoryBuilding,
		"Nexus", "Pylon", "Assimilator", "AssimilatorRich", "Gateway", "WarpGate", "Forge", "CyberneticsCore",
		"PhotonCannon", "ShieldBattery", "TwilightCouncil", "RoboticsFacility", "RoboticsBay", "Stargate",
		"FleetBeacon", "TemplarArchive", "DarkShrine")

	register(RaceZerg, CategoryWorker, "Drone", "DroneBurrowed")
	register(RaceZerg, CategoryArmy,
		"Larva", "Egg", "Queen", "QueenBurrowed", "Zergling", "ZerglingBurrowed", "Baneling", "BanelingCocoon",
		"Roach", "RoachBurrowed", "Ravager", "Hydralisk", "Lurker", "LurkerBurrowed", "Infestor", "SwarmHost",
		"Ultralisk", "Overlord", "OverlordTransport", "Overseer", "Mutalisk", "Corruptor", "BroodLord", "Viper",
		"Broodling", "Changeling", "LocustMP")
	register(RaceZerg, CategoryBuilding,
		"Hatchery", "Lair", "Hive", "Extractor", "ExtractorRich", "SpawningPool", "EvolutionChamber",
		"RoachWarren", "BanelingNest", "HydraliskDen", "LurkerDen", "InfestationPit", "Spire", "GreaterSpire",
		"UltraliskCavern", "NydusNetwork", "NydusCanal", "SpineCrawler", "SpineCrawlerUprooted", "SporeCrawler",
		"SporeCrawlerUprooted", "CreepTumor", "CreepTumorBurrowed", "CreepTumorQueen")

	register(RaceNeutral, CategoryResource,
		"MineralField", "MineralField750", "RichMineralField", "RichMineralField750", "LabMineralField",
		"LabMineralField750", "PurifierMineralField", "PurifierMineralField750", "VespeneGeyser",
		"RichVespeneGeyser", "SpacePlatformGeyser", "ProtossVespeneGeyser", "PurifierVespeneGeyser")
	register(RaceNeutral, CategoryOther,
		"XelNagaTower", "DestructibleRocks2x4Vertical", "DestructibleDebris6x6", "UnbuildablePlatesDestructible",
		"InhibitorZoneSmall", "InhibitorZoneMedium")
}

// Lookup returns metadata for a unit type.
func Lookup(name string) (UnitInfo, bool) {
	info, ok := units[name]
	return info, ok
}

// IsBuilding reports whether the unit type is a structure.
func IsBuilding(name string) bool {
	info, ok := units[name]
	return ok && info.Category == CategoryBuilding
}

// IsWorker reports whether the unit type harvests resources.
func IsWorker(name string) bool {
	info, ok := units[name]
	return ok && info.Category == CategoryWorker
}

// RaceOf returns the race owning a unit type, or "" when unknown.
func RaceOf(name string) string {
	return units[name].Race
}

// NormalizeRace maps a replay race string to a canonical race name.
func NormalizeRace(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "terran", "terr", "terraner", "terrano":
		return RaceTerran
	case "protoss", "prot":
		return RaceProtoss
	case "zerg":
		return RaceZerg
	case "random", "rand", "zufällig", "aleatorio":
		return RaceRandom
	}
	return strings.TrimSpace(s)
}
