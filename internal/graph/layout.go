package graph

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"rtgraph/graphgen/internal/errs"
)

// Layout names a position-assignment algorithm
type Layout string

const (
	LayoutCircular Layout = "circular"
	LayoutRandom   Layout = "random"
	LayoutShell    Layout = "shell"
	LayoutSpectral Layout = "spectral"
	LayoutSpiral   Layout = "spiral"
	LayoutSpring   Layout = "spring"
)

// LayoutParams tunes a layout run
type LayoutParams struct {
	Scale      float64
	K          float64 // optimal distance between vertices (spring)
	Iterations int
	Resolution float64 // angle step (spiral)
	Seed       int64
}

// LayoutFunc places every vertex of g in dim dimensions
type LayoutFunc func(g *Graph, dim int, p LayoutParams) map[string][]float64

type layoutSpec struct {
	run  LayoutFunc
	dims []int
	// params derives run parameters from the vertex count
	params func(n int) LayoutParams
}

func baseParams(int) LayoutParams { return LayoutParams{Scale: 1, Seed: 42} }

var layouts = map[Layout]layoutSpec{
	LayoutCircular: {run: circularLayout, dims: []int{2}, params: baseParams},
	LayoutRandom:   {run: randomLayout, dims: []int{2, 3}, params: baseParams},
	LayoutShell:    {run: shellLayout, dims: []int{2}, params: baseParams},
	LayoutSpectral: {run: spectralLayout, dims: []int{2, 3}, params: baseParams},
	LayoutSpiral: {run: spiralLayout, dims: []int{2}, params: func(int) LayoutParams {
		return LayoutParams{Scale: 1, Resolution: 0.35}
	}},
	LayoutSpring: {run: springLayout, dims: []int{2, 3}, params: func(n int) LayoutParams {
		k := 1.0
		if n > 0 {
			k = 1 / math.Sqrt(float64(n))
		}
		return LayoutParams{Scale: 1, K: k, Iterations: 50, Seed: 42}
	}},
}

// LayoutNames returns the registered layout names, sorted
func LayoutNames() []string {
	names := make([]string, 0, len(layouts))
	for l := range layouts {
		names = append(names, string(l))
	}
	sort.Strings(names)
	return names
}

// ParseLayout validates a layout name
func ParseLayout(name string) (Layout, error) {
	l := Layout(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := layouts[l]; !ok {
		return "", fmt.Errorf("%w: unknown layout %q (known: %s)", errs.ErrConfiguration, name, strings.Join(LayoutNames(), ", "))
	}
	return l, nil
}

// Validate checks that l supports dim dimensions
func (l Layout) Validate(dim int) error {
	spec, ok := layouts[l]
	if !ok {
		return fmt.Errorf("%w: unknown layout %q", errs.ErrConfiguration, l)
	}
	for _, d := range spec.dims {
		if d == dim {
			return nil
		}
	}
	return fmt.Errorf("%w: layout %q does not support %d dimensions", errs.ErrConfiguration, l, dim)
}

// Place runs the layout over g and returns one coordinate tuple per vertex
func (l Layout) Place(g *Graph, dim int) (map[string][]float64, error) {
	if err := l.Validate(dim); err != nil {
		return nil, err
	}
	spec := layouts[l]
	return spec.run(g, dim, spec.params(len(g.Nodes))), nil
}

func circularLayout(g *Graph, _ int, p LayoutParams) map[string][]float64 {
	ids := g.NodeIDs()
	pos := make(map[string][]float64, len(ids))
	if len(ids) == 1 {
		pos[ids[0]] = []float64{0, 0}
		return pos
	}
	for i, id := range ids {
		theta := 2 * math.Pi * float64(i) / float64(len(ids))
		pos[id] = []float64{p.Scale * math.Cos(theta), p.Scale * math.Sin(theta)}
	}
	return pos
}

func randomLayout(g *Graph, dim int, p LayoutParams) map[string][]float64 {
	rng := rand.New(rand.NewSource(p.Seed))
	pos := make(map[string][]float64, len(g.Nodes))
	for _, id := range g.NodeIDs() {
		c := make([]float64, dim)
		for d := range c {
			c[d] = rng.Float64()
		}
		pos[id] = c
	}
	return pos
}

// shellLayout puts the most connected accounts in the innermost shells.
// Shell 0 holds one vertex, shell k holds up to 6k.
func shellLayout(g *Graph, _ int, p LayoutParams) map[string][]float64 {
	ids := g.NodeIDs()
	sort.SliceStable(ids, func(i, j int) bool { return len(g.Adj[ids[i]]) > len(g.Adj[ids[j]]) })

	var shells [][]string
	for start, k := 0, 0; start < len(ids); k++ {
		capacity := 6 * k
		if k == 0 {
			capacity = 1
		}
		end := start + capacity
		if end > len(ids) {
			end = len(ids)
		}
		shells = append(shells, ids[start:end])
		start = end
	}

	pos := make(map[string][]float64, len(ids))
	outer := float64(len(shells) - 1)
	for k, shell := range shells {
		radius := 0.0
		if outer > 0 {
			radius = p.Scale * float64(k) / outer
		}
		for i, id := range shell {
			theta := 2 * math.Pi * float64(i) / float64(len(shell))
			pos[id] = []float64{radius * math.Cos(theta), radius * math.Sin(theta)}
		}
	}
	return pos
}

func spiralLayout(g *Graph, _ int, p LayoutParams) map[string][]float64 {
	ids := g.NodeIDs()
	pos := make(map[string][]float64, len(ids))
	for i, id := range ids {
		dist := float64(i)
		angle := p.Resolution * dist
		pos[id] = []float64{dist * math.Cos(angle), dist * math.Sin(angle)}
	}
	rescale(pos, p.Scale)
	return pos
}

// springLayout is a weighted Fruchterman-Reingold force simulation
func springLayout(g *Graph, dim int, p LayoutParams) map[string][]float64 {
	ids := g.NodeIDs()
	n := len(ids)
	pos := randomLayout(g, dim, p)
	if n <= 1 {
		for _, id := range ids {
			pos[id] = make([]float64, dim)
		}
		return pos
	}

	weights := g.Undirected()
	temperature := 0.1
	cooling := temperature / float64(p.Iterations+1)
	disp := make(map[string][]float64, n)

	for iter := 0; iter < p.Iterations; iter++ {
		for _, id := range ids {
			disp[id] = make([]float64, dim)
		}
		for i, u := range ids {
			for _, v := range ids[i+1:] {
				delta := sub(pos[u], pos[v])
				dist := math.Max(norm(delta), 0.01)
				// repulsion between every pair, attraction along weighted edges
				force := p.K*p.K/(dist*dist) - weights[u][v]*dist/p.K
				for d := 0; d < dim; d++ {
					disp[u][d] += delta[d] * force
					disp[v][d] -= delta[d] * force
				}
			}
		}
		for _, id := range ids {
			length := math.Max(norm(disp[id]), 0.01)
			for d := 0; d < dim; d++ {
				pos[id][d] += disp[id][d] * temperature / length
			}
		}
		temperature -= cooling
	}
	rescale(pos, p.Scale)
	return pos
}

// spectralLayout uses the eigenvectors of the weighted graph Laplacian with
// the smallest non-zero eigenvalues as coordinates. Dense, so O(n^3).
func spectralLayout(g *Graph, dim int, p LayoutParams) map[string][]float64 {
	ids := g.NodeIDs()
	n := len(ids)
	pos := make(map[string][]float64, n)
	if n == 0 {
		return pos
	}

	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
	}
	lap := make([][]float64, n)
	for i := range lap {
		lap[i] = make([]float64, n)
	}
	for u, nbrs := range g.Undirected() {
		i := index[u]
		for v, w := range nbrs {
			lap[i][index[v]] -= w
			lap[i][i] += w
		}
	}

	vals, vecs := symmetricEigen(lap)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return vals[order[a]] < vals[order[b]] })

	for i, id := range ids {
		c := make([]float64, dim)
		for d := 0; d < dim && d+1 < n; d++ {
			c[d] = vecs[i][order[d+1]]
		}
		pos[id] = c
	}
	rescale(pos, p.Scale)
	return pos
}

// symmetricEigen diagonalises a symmetric matrix in place with cyclic Jacobi
// rotations. Column k of the returned vectors belongs to eigenvalue k.
func symmetricEigen(a [][]float64) ([]float64, [][]float64) {
	n := len(a)
	v := make([][]float64, n)
	for i := range v {
		v[i] = make([]float64, n)
		v[i][i] = 1
	}

	for sweep := 0; sweep < 100; sweep++ {
		off := 0.0
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				off += a[p][q] * a[p][q]
			}
		}
		if off < 1e-20 {
			break
		}
		for p := 0; p < n-1; p++ {
			for q := p + 1; q < n; q++ {
				if a[p][q] == 0 {
					continue
				}
				theta := (a[q][q] - a[p][p]) / (2 * a[p][q])
				t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				c := 1 / math.Sqrt(t*t+1)
				s := t * c
				for k := 0; k < n; k++ {
					kp, kq := a[k][p], a[k][q]
					a[k][p] = c*kp - s*kq
					a[k][q] = s*kp + c*kq
				}
				for k := 0; k < n; k++ {
					pk, qk := a[p][k], a[q][k]
					a[p][k] = c*pk - s*qk
					a[q][k] = s*pk + c*qk
				}
				for k := 0; k < n; k++ {
					kp, kq := v[k][p], v[k][q]
					v[k][p] = c*kp - s*kq
					v[k][q] = s*kp + c*kq
				}
			}
		}
	}

	vals := make([]float64, n)
	for i := range vals {
		vals[i] = a[i][i]
	}
	return vals, v
}

// rescale centres positions on the origin and scales the largest coordinate to scale
func rescale(pos map[string][]float64, scale float64) {
	if len(pos) == 0 {
		return
	}
	var dim int
	for _, c := range pos {
		dim = len(c)
		break
	}
	mean := make([]float64, dim)
	for _, c := range pos {
		for d := range c {
			mean[d] += c[d]
		}
	}
	for d := range mean {
		mean[d] /= float64(len(pos))
	}
	lim := 0.0
	for _, c := range pos {
		for d := range c {
			c[d] -= mean[d]
			lim = math.Max(lim, math.Abs(c[d]))
		}
	}
	if lim == 0 {
		return
	}
	for _, c := range pos {
		for d := range c {
			c[d] *= scale / lim
		}
	}
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func norm(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}
