package indicator

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"screening-systemv1/internal/model"
)

// Registered indicator types.
const (
	TypeSMA             = "SMA"
	TypeEMA             = "EMA"
	TypeSTDEV           = "STDEV"
	TypeATR             = "ATR"
	TypeATRChannel      = "ATRChannel"
	TypeDonchianChannel = "DonchianChannel"
	TypeTrailingStops   = "TrailingStops"
	TypeMACD            = "MACD"
	TypeMACross         = "MACross"
	TypeVolume          = "Volume"
	TypeTrendStrength   = "TrendStrength"
	TypeBollingerBand   = "BollingerBand"
	TypeRSI             = "RSI"
)

// Descriptor describes one registered indicator type.
type Descriptor struct {
	Type string

	// New returns a pointer to a config holding the default parameters.
	New func() Config

	// Columns lists the numeric output columns for the default parameters.
	Columns []string
}

var registry = map[string]Descriptor{}

func register(d Descriptor) {
	if _, dup := registry[d.Type]; dup {
		panic("indicator: duplicate registration of " + d.Type)
	}
	registry[d.Type] = d
}

func init() {
	register(Descriptor{Type: TypeSMA, Columns: []string{"SMA"},
		New: func() Config { return &SMAConfig{Period: 10, Field: model.ColClose} }})
	register(Descriptor{Type: TypeEMA, Columns: []string{"EMA"},
		New: func() Config { return &EMAConfig{Period: 10, Field: model.ColClose} }})
	register(Descriptor{Type: TypeSTDEV, Columns: []string{"STDEV"},
		New: func() Config { return &STDEVConfig{Period: 10, Field: model.ColClose} }})
	register(Descriptor{Type: TypeATR, Columns: []string{"ATR"},
		New: func() Config { return &ATRConfig{Period: 10} }})
	register(Descriptor{Type: TypeATRChannel, Columns: []string{"Top", "Mid", "Bottom"},
		New: func() Config { return &ATRChannelConfig{Top: 7, Bottom: 3, SMA: 150} }})
	register(Descriptor{Type: TypeDonchianChannel, Columns: []string{"High", "Mid", "Low"},
		New: func() Config { return &DonchianChannelConfig{High: 50, Low: 50} }})
	register(Descriptor{Type: TypeTrailingStops, Columns: []string{"BuyStops", "SellStops"},
		New: func() Config { return &TrailingStopsConfig{Multiplier: 4, Period: 10} }})
	register(Descriptor{Type: TypeMACD, Columns: []string{"MACD", "Signal", "MACDCrossoverSignal", "SignalCrossoverMACD"},
		New: func() Config { return &MACDConfig{Fast: 12, Slow: 26, Signal: 9} }})
	register(Descriptor{Type: TypeMACross, Columns: []string{"FastSMA", "SlowSMA", "SlowCrossoverFast", "FastCrossoverSlow"},
		New: func() Config { return &MACrossConfig{Fast: 40, Slow: 60} }})
	register(Descriptor{Type: TypeVolume, Columns: []string{"Volume", "EMA"},
		New: func() Config { return &VolumeConfig{Period: 20} }})
	trendStrength := TrendStrengthConfig{Start: 40, End: 150, Step: 5}
	register(Descriptor{Type: TypeTrendStrength, Columns: trendStrength.Columns(),
		New: func() Config { c := trendStrength; return &c }})
	register(Descriptor{Type: TypeBollingerBand, Columns: []string{"Top", "Mid", "Bottom"},
		New: func() Config { return &BollingerBandConfig{Period: 50, StDev: 2} }})
	register(Descriptor{Type: TypeRSI, Columns: []string{"RS", "RSI"},
		New: func() Config { return &RSIConfig{Period: 20, Field: model.ColClose} }})
}

// Types returns every registered type name, sorted.
func Types() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the descriptor of typ. Matching is case-insensitive.
func Lookup(typ string) (Descriptor, bool) {
	if d, ok := registry[typ]; ok {
		return d, true
	}
	for name, d := range registry {
		if strings.EqualFold(name, typ) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Decode builds a validated config of typ from loosely typed params laid
// over the type's defaults. Unknown parameter names are rejected.
func Decode(typ string, params map[string]any) (Config, error) {
	d, ok := Lookup(typ)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, typ)
	}
	cfg := d.New()
	if len(params) > 0 {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			MatchName:        strings.EqualFold,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(params); err != nil {
			return nil, fmt.Errorf("%w: %s params: %v", ErrInvalidConfig, d.Type, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// hand out the value so later changes by the caller cannot reach it
	return reflect.ValueOf(cfg).Elem().Interface().(Config), nil
}
