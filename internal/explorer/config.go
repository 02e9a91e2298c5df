package explorer

import (
	"fmt"
	"time"

	"github.com/okian/upsetlens/internal/domain/upset"
)

// Config holds the settings of one exploration run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Publications int           // Number of synthetic publications
	Albums       int           // Number of synthetic albums
	Years        []int         // Review years
	Mode         string        // Intersection mode
	Seed         uint64        // Generator seed
	Timeout      time.Duration // HTTP request timeout
	BrushTop     int           // Ranks brushed per publication
}

// DefaultConfig returns the settings used when no flag overrides them.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:9080",
		Publications: 3,
		Albums:       60,
		Years:        []int{2024},
		Mode:         upset.Exclusive.String(),
		Seed:         1,
		Timeout:      10 * time.Second,
		BrushTop:     10,
	}
}

// Validate rejects settings the service cannot serve.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: url is required", ErrInvalidConfig)
	case c.Publications < 1:
		return fmt.Errorf("%w: need at least one publication", ErrInvalidConfig)
	case c.Albums < 1:
		return fmt.Errorf("%w: need at least one album", ErrInvalidConfig)
	case len(c.Years) == 0:
		return fmt.Errorf("%w: need at least one year", ErrInvalidConfig)
	case c.BrushTop < 1:
		return fmt.Errorf("%w: brush-top must be positive", ErrInvalidConfig)
	}
	if _, err := upset.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
