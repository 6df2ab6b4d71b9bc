package crosstab

// Option is a functional option for configuring a Table.
type Option func(*tableConfig)

type tableConfig struct {
	varNames []string
	seed     uint64
	capacity int
}

func defaultTableConfig() *tableConfig {
	return &tableConfig{
		seed: 0x9e3779b97f4a7c15, // Arbitrary default; overridden via WithSeed
	}
}

// WithVarNames sets the display names for the key variables. The slice must
// have exactly keyLen entries. Names are copied, so the caller can reuse the
// slice after this call.
func WithVarNames(names []string) Option {
	return func(c *tableConfig) {
		c.varNames = append([]string(nil), names...) // Copy slice
	}
}

// WithSeed sets the hash seed. Tables built with different seeds are
// behaviorally identical; the seed only perturbs bucket placement.
func WithSeed(seed uint64) Option {
	return func(c *tableConfig) {
		c.seed = seed
	}
}

// WithCapacity pre-sizes internal storage for an expected number of distinct
// combinations. Purely an allocation hint; the table grows past it as needed.
func WithCapacity(n int) Option {
	return func(c *tableConfig) {
		c.capacity = n
	}
}
