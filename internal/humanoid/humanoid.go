// internal/humanoid/humanoid.go
package humanoid

import (
	"math/rand"
	"sync"
	"time"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Humanoid synthesizes pointer and keyboard input on top of an Executor.
type Humanoid struct {
	// mu protects the pointer state and rng. Executor calls are made while
	// holding it so one logical action is never interleaved with another.
	mu       sync.Mutex
	cfg      config.HumanoidConfig
	logger   *zap.Logger
	executor Executor

	currentPos    Vector2D
	currentButton schemas.MouseButton
	rng           *rand.Rand
	// keys paces character-by-character entry.
	keys *rate.Limiter
}

var _ Controller = (*Humanoid)(nil)

// New creates and initializes a new Humanoid instance.
func New(cfg config.HumanoidConfig, logger *zap.Logger, executor Executor) *Humanoid {
	return newHumanoid(cfg, logger, executor, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewTestHumanoid creates a Humanoid with deterministic randomness and
// unthrottled typing for tests.
func NewTestHumanoid(executor Executor, seed int64) *Humanoid {
	cfg := config.HumanoidConfig{
		ClickHoldMinMs: 50,
		ClickHoldMaxMs: 50,
		MoveSteps:      4,
		MoveDurationMs: 40,
		SettleMs:       10,
	}
	return newHumanoid(cfg, zap.NewNop(), executor, rand.New(rand.NewSource(seed)))
}

func newHumanoid(cfg config.HumanoidConfig, logger *zap.Logger, executor Executor, rng *rand.Rand) *Humanoid {
	if cfg.ClickHoldMaxMs < cfg.ClickHoldMinMs {
		cfg.ClickHoldMaxMs = cfg.ClickHoldMinMs
	}
	limit := rate.Inf
	if cfg.KeysPerSecond > 0 {
		limit = rate.Limit(cfg.KeysPerSecond)
	}
	return &Humanoid{
		cfg:           cfg,
		logger:        logger.Named("humanoid"),
		executor:      executor,
		currentButton: schemas.ButtonNone,
		rng:           rng,
		keys:          rate.NewLimiter(limit, 1),
	}
}

// Position returns the last pointer position dispatched.
func (h *Humanoid) Position() schemas.Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	return schemas.Point{X: int(h.currentPos.X + 0.5), Y: int(h.currentPos.Y + 0.5)}
}

// clickHold picks how long the button stays down. Caller holds h.mu.
func (h *Humanoid) clickHold() time.Duration {
	span := h.cfg.ClickHoldMaxMs - h.cfg.ClickHoldMinMs
	ms := h.cfg.ClickHoldMinMs
	if span > 0 {
		ms += h.rng.Intn(span + 1)
	}
	return time.Duration(ms) * time.Millisecond
}

func (h *Humanoid) settle() time.Duration {
	return time.Duration(h.cfg.SettleMs) * time.Millisecond
}
