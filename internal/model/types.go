package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Fixed IO contract of the combat domain: every controller sees the same
// observation vector and emits the same action flags.
const (
	InputCount  = 12
	OutputCount = 7
)

// Architecture describes a feed-forward layered topology.
type Architecture struct {
	Inputs  int   `json:"inputs"`
	Hidden  []int `json:"hidden"`
	Outputs int   `json:"outputs"`
}

// Network is a layered weight/bias value. Weights[l][from][to] connects node
// `from` of layer l to node `to` of layer l+1; Biases[l] covers layer l+1.
// Dimensions must agree with Architecture at every layer boundary.
type Network struct {
	Architecture Architecture  `json:"architecture"`
	Weights      [][][]float64 `json:"weights"`
	Biases       [][]float64   `json:"biases"`
}

type Genome struct {
	VersionedRecord
	ID         string  `json:"id"`
	Network    Network `json:"network"`
	Fitness    float64 `json:"fitness"`
	MatchesWon int     `json:"matches_won"`
	Generation int     `json:"generation"`
}

// GenomeExport is the interchange record for moving a genome between runs or
// installations. Import validates FormatVersion and architecture before
// accepting the payload.
type GenomeExport struct {
	Genome              Genome `json:"genome"`
	ExportedAtUTC       string `json:"exported_at_utc"`
	FormatVersion       int    `json:"format_version"`
	ArchitectureSummary string `json:"architecture_summary"`
}

// MatchJob carries two genome value copies across the worker boundary.
// Genomes are never shared by reference with an execution unit.
type MatchJob struct {
	JobID   int     `json:"job_id"`
	Genome1 Genome  `json:"genome1"`
	Genome2 Genome  `json:"genome2"`
	Spawn1X float64 `json:"spawn1_x"`
	Spawn2X float64 `json:"spawn2_x"`
}

// MatchResult reports one finished job. Correlation back onto genomes is by
// JobID only; completion order across workers is unspecified.
type MatchResult struct {
	JobID    int     `json:"job_id"`
	Fitness1 float64 `json:"fitness1"`
	Fitness2 float64 `json:"fitness2"`
	Won1     bool    `json:"won1"`
	Won2     bool    `json:"won2"`
	Health1  float64 `json:"health1"`
	Health2  float64 `json:"health2"`
}

type Population struct {
	VersionedRecord
	ID         string   `json:"id"`
	GenomeIDs  []string `json:"genome_ids"`
	Generation int      `json:"generation"`
}

type GenerationDiagnostics struct {
	Generation       int     `json:"generation"`
	BestFitness      float64 `json:"best_fitness"`
	MeanFitness      float64 `json:"mean_fitness"`
	MinFitness       float64 `json:"min_fitness"`
	MutationRate     float64 `json:"mutation_rate"`
	StaleGenerations int     `json:"stale_generations"`
}

type TopGenomeRecord struct {
	Rank    int     `json:"rank"`
	Fitness float64 `json:"fitness"`
	Genome  Genome  `json:"genome"`
}

// TrainingSample is one (observation, observed action) pair for the mirror
// trainer. Weight is recency importance, normalized across a batch before use.
type TrainingSample struct {
	Inputs  []float64 `json:"inputs"`
	Targets []float64 `json:"targets"`
	Weight  float64   `json:"weight"`
}
