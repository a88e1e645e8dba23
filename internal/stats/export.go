package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"neuroarena/internal/model"
	"neuroarena/internal/nn"
)

// GenomeFormatVersion is the interchange format version written by
// ExportGenome and required by ImportGenome.
const GenomeFormatVersion = 1

// ExportGenome writes one genome as a standalone interchange file and
// returns its path.
func ExportGenome(dir string, genome model.Genome) (string, error) {
	if genome.ID == "" {
		return "", fmt.Errorf("genome id is required")
	}
	if err := nn.Validate(genome.Network); err != nil {
		return "", fmt.Errorf("genome %s: %w", genome.ID, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	export := model.GenomeExport{
		Genome:              genome,
		ExportedAtUTC:       time.Now().UTC().Format(time.RFC3339),
		FormatVersion:       GenomeFormatVersion,
		ArchitectureSummary: architectureSummary(genome.Network.Architecture),
	}
	path := filepath.Join(dir, fmt.Sprintf("genome-%s.json", genome.ID))
	if err := writeJSON(path, export); err != nil {
		return "", err
	}
	return path, nil
}

// ImportGenome reads an interchange file and validates it wholesale: format
// version, fixed input/output counts, exact hidden shape, and dimension
// agreement. Any mismatch rejects the import with a descriptive error.
func ImportGenome(path string, hidden []int) (model.Genome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Genome{}, err
	}

	var export model.GenomeExport
	if err := json.Unmarshal(data, &export); err != nil {
		return model.Genome{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if export.FormatVersion != GenomeFormatVersion {
		return model.Genome{}, fmt.Errorf("%s: unsupported format version %d, want %d", path, export.FormatVersion, GenomeFormatVersion)
	}

	genome := export.Genome
	arch := genome.Network.Architecture
	if arch.Inputs != model.InputCount {
		return model.Genome{}, fmt.Errorf("%s: input count %d, want %d", path, arch.Inputs, model.InputCount)
	}
	if arch.Outputs != model.OutputCount {
		return model.Genome{}, fmt.Errorf("%s: output count %d, want %d", path, arch.Outputs, model.OutputCount)
	}
	if len(hidden) > 0 && !sameShape(arch.Hidden, hidden) {
		return model.Genome{}, fmt.Errorf("%s: hidden shape %v, want %v", path, arch.Hidden, hidden)
	}
	if err := nn.Validate(genome.Network); err != nil {
		return model.Genome{}, fmt.Errorf("%s: %w", path, err)
	}
	if genome.ID == "" {
		return model.Genome{}, fmt.Errorf("%s: genome id is required", path)
	}
	return genome, nil
}

func architectureSummary(arch model.Architecture) string {
	parts := make([]string, 0, len(arch.Hidden)+2)
	parts = append(parts, strconv.Itoa(arch.Inputs))
	for _, h := range arch.Hidden {
		parts = append(parts, strconv.Itoa(h))
	}
	parts = append(parts, strconv.Itoa(arch.Outputs))
	return strings.Join(parts, "-")
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
