package protocol

// AbilityKind classifies what an ability does for build order purposes.
type AbilityKind int

const (
	AbilityOther AbilityKind = iota
	AbilityMove
	AbilityAttack
	AbilityTrain
	AbilityBuild
	AbilityResearch
	AbilityMorph
)

// Verb is the action prefix used in build order entries.
func (k AbilityKind) Verb() string {
	switch k {
	case AbilityTrain:
		return "Train"
	case AbilityBuild:
		return "Build"
	case AbilityResearch:
		return "Research"
	case AbilityMorph:
		return "Morph"
	case AbilityMove:
		return "Move"
	case AbilityAttack:
		return "Attack"
	}
	return ""
}

// Producing reports whether the ability creates a unit, building or upgrade.
func (k AbilityKind) Producing() bool {
	return k == AbilityTrain || k == AbilityBuild || k == AbilityResearch || k == AbilityMorph
}

// AbilityDef is a build independent ability. Results is indexed by command index.
type AbilityDef struct {
	Name    string
	Kind    AbilityKind
	Results []string
}

// Ability is an ability resolved from a command event.
type Ability struct {
	Link     int
	CmdIndex int
	Name     string
	Kind     AbilityKind
	// Result is empty when the command index has no known product.
	Result string
}

// AbilityTable maps a build's ability link ids to definitions.
type AbilityTable map[int]AbilityDef

// Resolve looks up an ability by link and command index.
func (t AbilityTable) Resolve(link, cmdIndex int) (Ability, bool) {
	def, ok := t[link]
	if !ok {
		return Ability{Link: link, CmdIndex: cmdIndex}, false
	}
	a := Ability{Link: link, CmdIndex: cmdIndex, Name: def.Name, Kind: def.Kind}
	if cmdIndex >= 0 && cmdIndex < len(def.Results) {
		a.Result = def.Results[cmdIndex]
	}
	return a, true
}

// Link is the reverse lookup from ability name to link id.
func (t AbilityTable) Link(name string) (int, bool) {
	for link, def := range t {
		if def.Name == name {
			return link, true
		}
	}
	return 0, false
}

var abilityCatalog = []AbilityDef{
	{Name: "Move", Kind: AbilityMove},
	{Name: "Patrol", Kind: AbilityMove},
	{Name: "HoldPosition", Kind: AbilityMove},
	{Name: "Attack", Kind: AbilityAttack},
	{Name: "Stop", Kind: AbilityOther},
	{Name: "Rally", Kind: AbilityOther},
	{Name: "Harvest", Kind: AbilityOther},
	{Name: "ReturnCargo", Kind: AbilityOther},

	{Name: "CommandCenterTrain", Kind: AbilityTrain, Results: []string{"SCV"}},
	{Name: "BarracksTrain", Kind: AbilityTrain, Results: []string{"Marine", "Reaper", "Ghost", "Marauder"}},
	{Name: "FactoryTrain", Kind: AbilityTrain, Results: []string{"SiegeTank", "Thor", "Hellion", "WidowMine", "Cyclone"}},
	{Name: "StarportTrain", Kind: AbilityTrain, Results: []string{"Medivac", "Banshee", "Raven", "Battlecruiser", "VikingFighter", "Liberator"}},
	{Name: "TerranBuild", Kind: AbilityBuild, Results: []string{
		"CommandCenter", "SupplyDepot", "Refinery", "Barracks", "EngineeringBay", "MissileTurret",
		"Bunker", "SensorTower", "GhostAcademy", "Factory", "Starport", "Armory", "FusionCore",
	}},
	{Name: "BuildTechLab", Kind: AbilityBuild, Results: []string{"TechLab"}},
	{Name: "BuildReactor", Kind: AbilityBuild, Results: []string{"Reactor"}},
	{Name: "BarracksTechLabResearch", Kind: AbilityResearch, Results: []string{"Stimpack", "ShieldWall", "PunisherGrenades"}},
	{Name: "EngineeringBayResearch", Kind: AbilityResearch, Results: []string{
		"HiSecAutoTracking", "TerranBuildingArmor", "TerranInfantryWeaponsLevel1", "TerranInfantryArmorsLevel1",
	}},
	{Name: "UpgradeToOrbital", Kind: AbilityMorph, Results: []string{"OrbitalCommand"}},
	{Name: "UpgradeToPlanetaryFortress", Kind: AbilityMorph, Results: []string{"PlanetaryFortress"}},

	{Name: "NexusTrain", Kind: AbilityTrain, Results: []string{"Probe"}},
	{Name: "GatewayTrain", Kind: AbilityTrain, Results: []string{"Zealot", "Stalker", "HighTemplar", "DarkTemplar", "Sentry", "Adept"}},
	{Name: "RoboticsFacilityTrain", Kind: AbilityTrain, Results: []string{"WarpPrism", "Observer", "Colossus", "Immortal", "Disruptor"}},
	{Name: "StargateTrain", Kind: AbilityTrain, Results: []string{"Phoenix", "Carrier", "VoidRay", "Oracle", "Tempest"}},
	{Name: "ProtossBuild", Kind: AbilityBuild, Results: []string{
		"Nexus", "Pylon", "Assimilator", "Gateway", "Forge", "FleetBeacon", "TwilightCouncil", "PhotonCannon",
		"Stargate", "TemplarArchive", "DarkShrine", "RoboticsBay", "RoboticsFacility", "CyberneticsCore", "ShieldBattery",
	}},
	{Name: "CyberneticsCoreResearch", Kind: AbilityResearch, Results: []string{"WarpGateResearch", "ProtossAirWeaponsLevel1"}},
	{Name: "ForgeResearch", Kind: AbilityResearch, Results: []string{
		"ProtossGroundWeaponsLevel1", "ProtossGroundArmorsLevel1", "ProtossShieldsLevel1",
	}},
	{Name: "MorphToWarpGate", Kind: AbilityMorph, Results: []string{"WarpGate"}},

	{Name: "LarvaTrain", Kind: AbilityTrain, Results: []string{
		"Drone", "Zergling", "Overlord", "Hydralisk", "Mutalisk", "Ultralisk", "Roach", "Infestor", "Corruptor", "Viper",
	}},
	{Name: "HatcheryTrain", Kind: AbilityTrain, Results: []string{"Queen"}},
	{Name: "ZergBuild", Kind: AbilityBuild, Results: []string{
		"Hatchery", "CreepTumor", "Extractor", "SpawningPool", "EvolutionChamber", "HydraliskDen", "Spire",
		"UltraliskCavern", "InfestationPit", "NydusNetwork", "BanelingNest", "RoachWarren", "SpineCrawler", "SporeCrawler",
	}},
	{Name: "UpgradeToLair", Kind: AbilityMorph, Results: []string{"Lair"}},
	{Name: "UpgradeToHive", Kind: AbilityMorph, Results: []string{"Hive"}},
	{Name: "MorphZerglingToBaneling", Kind: AbilityMorph, Results: []string{"Baneling"}},
	{Name: "SpawningPoolResearch", Kind: AbilityResearch, Results: []string{"zerglingattackspeed", "zerglingmovementspeed"}},
	{Name: "LairResearch", Kind: AbilityResearch, Results: []string{"overlordspeed", "Burrow"}},
}

// buildAbilityTable joins the catalog with a build's name to link map.
func buildAbilityTable(links map[string]int) AbilityTable {
	table := make(AbilityTable, len(links))
	for _, def := range abilityCatalog {
		if link, ok := links[def.Name]; ok {
			table[link] = def
		}
	}
	return table
}

var links75689 = map[string]int{
	"Move":                       1,
	"Patrol":                     2,
	"HoldPosition":               3,
	"Attack":                     23,
	"Stop":                       4,
	"Rally":                      195,
	"Harvest":                    102,
	"ReturnCargo":                104,
	"CommandCenterTrain":         524,
	"BarracksTrain":              560,
	"FactoryTrain":               590,
	"StarportTrain":              620,
	"TerranBuild":                318,
	"BuildTechLab":               421,
	"BuildReactor":               422,
	"BarracksTechLabResearch":    730,
	"EngineeringBayResearch":     650,
	"UpgradeToOrbital":           1516,
	"UpgradeToPlanetaryFortress": 1450,
	"NexusTrain":                 1006,
	"GatewayTrain":               916,
	"RoboticsFacilityTrain":      946,
	"StargateTrain":              954,
	"ProtossBuild":               881,
	"CyberneticsCoreResearch":    1562,
	"ForgeResearch":              1062,
	"MorphToWarpGate":            1518,
	"LarvaTrain":                 1342,
	"HatcheryTrain":              1632,
	"ZergBuild":                  1152,
	"UpgradeToLair":              1216,
	"UpgradeToHive":              1218,
	"MorphZerglingToBaneling":    80,
	"SpawningPoolResearch":       1253,
	"LairResearch":               1225,
}

var links80949 = map[string]int{
	"Move":                       1,
	"Patrol":                     2,
	"HoldPosition":               3,
	"Attack":                     23,
	"Stop":                       4,
	"Rally":                      199,
	"Harvest":                    104,
	"ReturnCargo":                106,
	"CommandCenterTrain":         527,
	"BarracksTrain":              563,
	"FactoryTrain":               594,
	"StarportTrain":              624,
	"TerranBuild":                320,
	"BuildTechLab":               424,
	"BuildReactor":               425,
	"BarracksTechLabResearch":    734,
	"EngineeringBayResearch":     654,
	"UpgradeToOrbital":           1522,
	"UpgradeToPlanetaryFortress": 1456,
	"NexusTrain":                 1010,
	"GatewayTrain":               920,
	"RoboticsFacilityTrain":      950,
	"StargateTrain":              958,
	"ProtossBuild":               884,
	"CyberneticsCoreResearch":    1568,
	"ForgeResearch":              1066,
	"MorphToWarpGate":            1524,
	"LarvaTrain":                 1346,
	"HatcheryTrain":              1638,
	"ZergBuild":                  1156,
	"UpgradeToLair":              1220,
	"UpgradeToHive":              1222,
	"MorphZerglingToBaneling":    80,
	"SpawningPoolResearch":       1257,
	"LairResearch":               1229,
}

var links88500 = map[string]int{
	"Move":                       1,
	"Patrol":                     2,
	"HoldPosition":               3,
	"Attack":                     23,
	"Stop":                       4,
	"Rally":                      203,
	"Harvest":                    106,
	"ReturnCargo":                108,
	"CommandCenterTrain":         530,
	"BarracksTrain":              566,
	"FactoryTrain":               597,
	"StarportTrain":              627,
	"TerranBuild":                322,
	"BuildTechLab":               427,
	"BuildReactor":               428,
	"BarracksTechLabResearch":    738,
	"EngineeringBayResearch":     658,
	"UpgradeToOrbital":           1528,
	"UpgradeToPlanetaryFortress": 1462,
	"NexusTrain":                 1014,
	"GatewayTrain":               924,
	"RoboticsFacilityTrain":      954,
	"StargateTrain":              962,
	"ProtossBuild":               887,
	"CyberneticsCoreResearch":    1574,
	"ForgeResearch":              1070,
	"MorphToWarpGate":            1530,
	"LarvaTrain":                 1350,
	"HatcheryTrain":              1644,
	"ZergBuild":                  1160,
	"UpgradeToLair":              1224,
	"UpgradeToHive":              1226,
	"MorphZerglingToBaneling":    80,
	"SpawningPoolResearch":       1261,
	"LairResearch":               1233,
}
