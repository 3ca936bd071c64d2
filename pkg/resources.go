package propagation

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/interp"
)

// GridAxis is a regular axis with N points from Min to Max.
type GridAxis struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	N    int     `json:"n"`
}

// locate returns the lower node index and the fractional offset of v on the
// axis. ok is false outside [Min, Max].
func (a GridAxis) locate(v float64) (int, float64, bool) {
	if math.IsNaN(v) || v < a.Min || v > a.Max {
		return 0, 0, false
	}
	if a.N < 2 {
		return 0, 0, true
	}
	f := (v - a.Min) / (a.Max - a.Min) * float64(a.N-1)
	i := int(math.Floor(f))
	if i >= a.N-1 {
		i = a.N - 2
	}
	return i, f - float64(i), true
}

func (a GridAxis) validate() error {
	if a.N < 1 {
		return fmt.Errorf("axis %q has no points", a.Name)
	}
	if a.N > 1 && !(a.Max > a.Min) {
		return fmt.Errorf("axis %q has max %v <= min %v", a.Name, a.Max, a.Min)
	}
	return nil
}

// GridMap is a bilinear scalar map on a regular 2-D grid. Values is indexed
// [i*B.N + j] for node (A_i, B_j).
type GridMap struct {
	A      GridAxis
	B      GridAxis
	Values []float64
}

func NewGridMap(a, b GridAxis, values [][]float64) (*GridMap, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	if len(values) != a.N {
		return nil, fmt.Errorf("%w: map has %d rows, axis %q has %d points", ErrLengthMismatch, len(values), a.Name, a.N)
	}
	flat := make([]float64, 0, a.N*b.N)
	for i, row := range values {
		if len(row) != b.N {
			return nil, fmt.Errorf("%w: map row %d has %d values, axis %q has %d points", ErrLengthMismatch, i, len(row), b.Name, b.N)
		}
		flat = append(flat, row...)
	}
	return &GridMap{A: a, B: b, Values: flat}, nil
}

// Evaluate returns NaN outside the grid.
func (m *GridMap) Evaluate(a, b float64) float64 {
	i, fa, okA := m.A.locate(a)
	j, fb, okB := m.B.locate(b)
	if !okA || !okB {
		return math.NaN()
	}
	v00 := m.at(i, j)
	v01 := m.at(i, j+1)
	v10 := m.at(i+1, j)
	v11 := m.at(i+1, j+1)
	return (1-fa)*(1-fb)*v00 + (1-fa)*fb*v01 + fa*(1-fb)*v10 + fa*fb*v11
}

// at clamps node indices onto the grid so single point axes work.
func (m *GridMap) at(i, j int) float64 {
	if i >= m.A.N {
		i = m.A.N - 1
	}
	if j >= m.B.N {
		j = m.B.N - 1
	}
	return m.Values[i*m.B.N+j]
}

// ConstantMap returns the same value everywhere.
type ConstantMap float64

func (c ConstantMap) Evaluate(float64, float64) float64 {
	return float64(c)
}

// GridPatternMap is a bilinear per-channel pattern map on a regular x/y grid.
type GridPatternMap struct {
	X      GridAxis
	Y      GridAxis
	NChan  int
	Values []float64 // [(ix*Y.N+iy)*NChan + ch]
}

func NewGridPatternMap(x, y GridAxis, values [][][]float64) (*GridPatternMap, error) {
	if err := x.validate(); err != nil {
		return nil, err
	}
	if err := y.validate(); err != nil {
		return nil, err
	}
	if len(values) != x.N || len(values[0]) != y.N {
		return nil, fmt.Errorf("%w: pattern map grid does not match its axes", ErrLengthMismatch)
	}
	nChan := len(values[0][0])
	flat := make([]float64, 0, x.N*y.N*nChan)
	for i := range values {
		if len(values[i]) != y.N {
			return nil, fmt.Errorf("%w: pattern map row %d has %d nodes, expected %d", ErrLengthMismatch, i, len(values[i]), y.N)
		}
		for j := range values[i] {
			if len(values[i][j]) != nChan {
				return nil, fmt.Errorf("%w: node (%d, %d) has %d channels, expected %d", ErrPatternDimension, i, j, len(values[i][j]), nChan)
			}
			flat = append(flat, values[i][j]...)
		}
	}
	return &GridPatternMap{X: x, Y: y, NChan: nChan, Values: flat}, nil
}

func (m *GridPatternMap) NChannels() int {
	return m.NChan
}

func (m *GridPatternMap) Pattern(x, y float64, dst []float64) []float64 {
	if cap(dst) < m.NChan {
		dst = make([]float64, m.NChan)
	}
	dst = dst[:m.NChan]

	i, fx, okX := m.X.locate(x)
	j, fy, okY := m.Y.locate(y)
	if !okX || !okY {
		for ch := range dst {
			dst[ch] = math.NaN()
		}
		return dst
	}
	n00 := m.node(i, j)
	n01 := m.node(i, j+1)
	n10 := m.node(i+1, j)
	n11 := m.node(i+1, j+1)
	w00 := (1 - fx) * (1 - fy)
	w01 := (1 - fx) * fy
	w10 := fx * (1 - fy)
	w11 := fx * fy
	for ch := range dst {
		dst[ch] = w00*n00[ch] + w01*n01[ch] + w10*n10[ch] + w11*n11[ch]
	}
	return dst
}

func (m *GridPatternMap) node(i, j int) []float64 {
	if i >= m.X.N {
		i = m.X.N - 1
	}
	if j >= m.Y.N {
		j = m.Y.N - 1
	}
	start := (i*m.Y.N + j) * m.NChan
	return m.Values[start : start+m.NChan]
}

// ScaleAreaFractionTop rescales every node so that the fraction of the
// pattern seen by the first nTop channels equals aft.
func (m *GridPatternMap) ScaleAreaFractionTop(aft float64, nTop int) {
	if nTop <= 0 || nTop >= m.NChan {
		return
	}
	for start := 0; start < len(m.Values); start += m.NChan {
		node := m.Values[start : start+m.NChan]
		top, bottom := 0.0, 0.0
		for ch, v := range node {
			if ch < nTop {
				top += v
			} else {
				bottom += v
			}
		}
		total := top + bottom
		if top <= 0 || bottom <= 0 {
			continue
		}
		for ch := range node {
			if ch < nTop {
				node[ch] *= aft * total / top
			} else {
				node[ch] *= (1 - aft) * total / bottom
			}
		}
	}
}

// PiecewiseSpline is a linear spline over increasing knots, constant beyond
// the end knots.
type PiecewiseSpline struct {
	pl interp.PiecewiseLinear
}

func NewPiecewiseSpline(xs, ys []float64) (*PiecewiseSpline, error) {
	s := &PiecewiseSpline{}
	if err := s.pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("error fitting spline: %w", err)
	}
	return s, nil
}

func (s *PiecewiseSpline) Evaluate(u float64) float64 {
	return s.pl.Predict(u)
}

type gridMapFile struct {
	Axes    []GridAxis             `json:"axes"`
	Map     [][]float64            `json:"map"`
	Maps    map[string][][]float64 `json:"maps"`
	Pattern [][][]float64          `json:"pattern"`
}

type splineFile struct {
	Quantiles []float64 `json:"quantiles"`
	Delays    []float64 `json:"delays"`
}

type opticalSplineFile struct {
	Top    splineFile `json:"top"`
	Bottom splineFile `json:"bottom"`
}

// ChargeSpectra is the reference single photoelectron charge spectrum:
// one histogram over Charge per channel.
type ChargeSpectra struct {
	Charge   []float64   `json:"charge"`
	Channels [][]float64 `json:"channels"`
}

// openResource opens a file, transparently decompressing .gz files.
func openResource(filename string) (io.ReadCloser, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	if !strings.HasSuffix(filename, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, &ErrResource{Name: filename, Err: err}
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	errReader := g.Reader.Close()
	errFile := g.file.Close()
	if errReader != nil {
		return errReader
	}
	return errFile
}

func decodeResource(filename string, v interface{}) error {
	r, err := openResource(filename)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return &ErrResource{Name: filename, Err: err}
	}
	return nil
}

func LoadPatternMap(filename string) (*GridPatternMap, error) {
	var data gridMapFile
	if err := decodeResource(filename, &data); err != nil {
		return nil, err
	}
	if len(data.Axes) != 2 {
		return nil, &ErrResource{Name: filename, Err: fmt.Errorf("pattern map needs 2 axes, got %d", len(data.Axes))}
	}
	if len(data.Pattern) == 0 {
		return nil, &ErrResource{Name: filename, Err: fmt.Errorf("pattern map is empty")}
	}
	m, err := NewGridPatternMap(data.Axes[0], data.Axes[1], data.Pattern)
	if err != nil {
		return nil, &ErrResource{Name: filename, Err: err}
	}
	return m, nil
}

// LoadGridMaps loads every map of a file. A file with a single "map" entry
// yields it under the name "map".
func LoadGridMaps(filename string) (map[string]*GridMap, error) {
	var data gridMapFile
	if err := decodeResource(filename, &data); err != nil {
		return nil, err
	}
	if len(data.Axes) != 2 {
		return nil, &ErrResource{Name: filename, Err: fmt.Errorf("grid map needs 2 axes, got %d", len(data.Axes))}
	}
	raw := data.Maps
	if raw == nil {
		raw = make(map[string][][]float64)
	}
	if data.Map != nil {
		raw["map"] = data.Map
	}
	if len(raw) == 0 {
		return nil, &ErrResource{Name: filename, Err: fmt.Errorf("file holds no maps")}
	}

	result := make(map[string]*GridMap, len(raw))
	for _, name := range sortedKeys(raw) {
		m, err := NewGridMap(data.Axes[0], data.Axes[1], raw[name])
		if err != nil {
			return nil, &ErrResource{Name: fmt.Sprintf("%s:%s", filename, name), Err: err}
		}
		result[name] = m
	}
	return result, nil
}

func LoadOpticalSplines(filename string) (*PiecewiseSpline, *PiecewiseSpline, error) {
	var data opticalSplineFile
	if err := decodeResource(filename, &data); err != nil {
		return nil, nil, err
	}
	top, err := NewPiecewiseSpline(data.Top.Quantiles, data.Top.Delays)
	if err != nil {
		return nil, nil, &ErrResource{Name: filename + ":top", Err: err}
	}
	bottom, err := NewPiecewiseSpline(data.Bottom.Quantiles, data.Bottom.Delays)
	if err != nil {
		return nil, nil, &ErrResource{Name: filename + ":bottom", Err: err}
	}
	return top, bottom, nil
}

func LoadLuminescenceTables(filename string) (*LuminescenceTables, error) {
	var tables LuminescenceTables
	if err := decodeResource(filename, &tables); err != nil {
		return nil, err
	}
	if err := tables.Validate(); err != nil {
		return nil, &ErrResource{Name: filename, Err: err}
	}
	return &tables, nil
}

func LoadChargeSpectra(filename string) (*ChargeSpectra, error) {
	var spectra ChargeSpectra
	if err := decodeResource(filename, &spectra); err != nil {
		return nil, err
	}
	for i, ch := range spectra.Channels {
		if len(ch) != len(spectra.Charge) {
			return nil, &ErrResource{Name: filename,
				Err: fmt.Errorf("%w: channel %d has %d bins, charge axis has %d", ErrLengthMismatch, i, len(ch), len(spectra.Charge))}
		}
	}
	return &spectra, nil
}

// BuildCalibration loads every resource named in the configuration and
// assembles the detector calibration. toPE is the per-channel gain model.
func BuildCalibration(config Configuration, toPE []float64) (*DetectorCalibration, error) {
	cal := &DetectorCalibration{
		NTopPmts:  config.NTopPmts,
		NTpcPmts:  config.NTpcPmts,
		TpcRadius: config.TpcRadius,
	}

	spectra, err := LoadChargeSpectra(config.PhotonAreaDistributionFile)
	if err != nil {
		return nil, err
	}
	cal.Gains, err = NewGainCalibrationTable(toPE, config.DigitizerVoltageRange,
		config.DigitizerBits, config.PmtCircuitLoadResistor, spectra)
	if err != nil {
		return nil, err
	}

	pattern, err := LoadPatternMap(config.PatternMapFile)
	if err != nil {
		return nil, err
	}
	if config.S2MeanAreaFractionTop > 0 {
		pattern.ScaleAreaFractionTop(config.S2MeanAreaFractionTop, config.NTopPmts)
	}
	cal.Pattern = pattern

	cal.OpticalTop, cal.OpticalBottom, err = loadSplinePair(config.OpticalSplineFile)
	if err != nil {
		return nil, err
	}

	if config.GasGapMapFile != "" {
		gasGap, err := LoadGridMaps(config.GasGapMapFile)
		if err != nil {
			return nil, err
		}
		m, ok := gasGap["map"]
		if !ok {
			return nil, &ErrResource{Name: config.GasGapMapFile, Err: fmt.Errorf("no \"map\" entry")}
		}
		cal.GasGapMap = m
	}

	if config.LuminescenceModel == GARFIELD_GAS_GAP {
		cal.Luminescence, err = LoadLuminescenceTables(config.LuminescenceFile)
		if err != nil {
			return nil, err
		}
	}

	if config.EnableDiffusionTransverseMap && config.FieldDependenciesFile != "" {
		fieldMaps, err := LoadGridMaps(config.FieldDependenciesFile)
		if err != nil {
			return nil, err
		}
		radial, okR := fieldMaps["diffusion_radial_map"]
		azimuthal, okA := fieldMaps["diffusion_azimuthal_map"]
		if !okR || !okA {
			return nil, &ErrResource{Name: config.FieldDependenciesFile,
				Err: fmt.Errorf("missing diffusion maps, found %v", sortedKeys(fieldMaps))}
		}
		cal.DiffusionRadialMap = radial
		cal.DiffusionAzimuthalMap = azimuthal
	}

	if err := cal.Validate(config); err != nil {
		return nil, err
	}
	return cal, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// loadSplinePair keeps the two spline values typed as the interface so a
// failed load never stores a typed nil.
func loadSplinePair(filename string) (QuantileSpline, QuantileSpline, error) {
	top, bottom, err := LoadOpticalSplines(filename)
	if err != nil {
		return nil, nil, err
	}
	return top, bottom, nil
}
