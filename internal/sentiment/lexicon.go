package sentiment

// Valences follow the VADER scale of roughly [-4, 4] and cover the most
// frequent review vocabulary of the French retail sites we ingest.
var frenchValences = map[string]float64{
	"bien":       1.5,
	"bon":        1.9,
	"bonne":      1.9,
	"génial":     2.8,
	"géniale":    2.8,
	"magnifique": 2.9,
	"parfait":    2.7,
	"parfaite":   2.7,
	"ravi":       2.5,
	"ravie":      2.5,
	"recommande": 1.5,
	"satisfait":  1.8,
	"satisfaite": 1.8,
	"solide":     1.2,
	"cassé":      -1.8,
	"cassée":     -1.8,
	"décevant":   -2.2,
	"décevante":  -2.2,
	"déçu":       -1.9,
	"déçue":      -1.9,
	"inutile":    -1.8,
	"mauvais":    -2.5,
	"mauvaise":   -2.5,
	"nul":        -2.0,
	"nulle":      -2.0,
	"problème":   -1.7,
}

var frenchBoosters = map[string]float64{
	"très":      boosterIncrement,
	"vraiment":  boosterIncrement,
	"tellement": boosterIncrement,
	"trop":      boosterIncrement,
	"peu":       -boosterIncrement,
}

var frenchNegations = map[string]struct{}{
	"jamais": {},
	"pas":    {},
	"rien":   {},
	"sans":   {},
}
