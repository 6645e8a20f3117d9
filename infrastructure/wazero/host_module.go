package wazero

import (
	"context"

	"github.com/reglet-dev/lv2host/feature"
	"github.com/reglet-dev/lv2host/internal/abi"
	hostlog "github.com/reglet-dev/lv2host/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// registerHostModule instantiates the host module units import.
func registerHostModule(ctx context.Context, rt wazero.Runtime, cfg LoaderConfig) error {
	i32 := api.ValueTypeI32
	_, err := rt.NewHostModuleBuilder(cfg.ModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = uint64(uridMap(ctx, mod, cfg, api.DecodeU32(stack[0]), api.DecodeU32(stack[1])))
		}), []api.ValueType{i32, i32}, []api.ValueType{i32}).
		Export(abi.ImportURIDMap).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			logMessage(ctx, mod, cfg, api.DecodeI32(stack[0]), api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
		}), []api.ValueType{i32, i32, i32}, []api.ValueType{}).
		Export(abi.ImportLog).
		Instantiate(ctx)
	return err
}

// uridMap maps the URI at ptr through the calling unit's URID map feature.
// It returns 0 when the unit was not given the feature.
func uridMap(ctx context.Context, mod api.Module, cfg LoaderConfig, ptr, length uint32) feature.URID {
	u, ok := unitFromContext(ctx)
	if !ok || u.mapper == nil {
		return 0
	}
	uri, err := readString(mod.Memory(), ptr, length, cfg.MaxStringSize)
	if err != nil {
		cfg.Logger.ErrorContext(ctx, "wazero: urid_map failed", "unit", u.uri, "error", err)
		return 0
	}
	return u.mapper.Map(uri)
}

// logMessage writes a unit log message at the slog level matching level.
func logMessage(ctx context.Context, mod api.Module, cfg LoaderConfig, level int32, ptr, length uint32) {
	msg, err := readString(mod.Memory(), ptr, length, cfg.MaxStringSize)
	if err != nil {
		cfg.Logger.ErrorContext(ctx, "wazero: log failed", "unit", unitName(ctx, mod), "error", err)
		return
	}
	logger := cfg.Logger
	if u, ok := unitFromContext(ctx); ok && u.logger != nil {
		logger = u.logger
	}
	logger.Log(ctx, hostlog.UnitLevel(level), msg, "unit", unitName(ctx, mod))
}
