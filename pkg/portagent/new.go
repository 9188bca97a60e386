package portagent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/oceanobs/portagent/pkg/listener"
)

// New dispatches to the constructor matching cfg.Type. It is the single
// entry point a configuration-driven caller (the --config YAML form) needs;
// CLI subcommand callers may instead call NewTCP/NewRSN/... directly since
// they already know the variant from the subcommand name.
func New(ctx context.Context, log zerolog.Logger, cfg Config, registrar listener.ServiceRegistrar) (*Agent, error) {
	switch AgentType(cfg.Type) {
	case AgentTCP:
		return NewTCP(ctx, log, cfg, registrar)
	case AgentRSN:
		return NewRSN(ctx, log, cfg, registrar)
	case AgentBOTPT:
		return NewBOTPT(ctx, log, cfg, registrar)
	case AgentDatalog:
		return NewDatalog(ctx, log, cfg, registrar)
	case AgentDigilogASCII:
		return NewDigilogASCII(ctx, log, cfg, registrar)
	case AgentChunky:
		return NewChunky(ctx, log, cfg, registrar)
	default:
		return nil, fmt.Errorf("portagent: unknown agent type %q", cfg.Type)
	}
}
