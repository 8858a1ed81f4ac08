package service

const (
	DefaultSimulations = 1000
	MaxSimulations     = 1_000_000   // un millón de ensayos
	MaxLoans           = 100_000     // préstamos por cartera
	MaxDraws           = 200_000_000 // ensayos × préstamos por corrida
	MaxWorkers         = 64

	DefaultListLimit = 20
	MaxListLimit     = 200

	// Semillas generadas caben en un número JSON sin pérdida
	maxGeneratedSeed = 1 << 53
)
