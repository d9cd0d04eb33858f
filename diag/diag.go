// Package diag implements the diagnostic (non-unitary, inspection-only)
// operations: a reduced density matrix snapshot of a register subset,
// and the fidelity/trace-distance comparison between two snapshots.
// Grounded on original_source/qumquat/snapshots.py's branch-grouping
// algorithm; the eigendecomposition original_source delegates to numpy
// is done here with gonum.org/v1/gonum/mat's real symmetric eigensolver,
// via the standard embedding of an n×n complex Hermitian matrix as a
// 2n×2n real symmetric matrix [[Re,-Im],[Im,Re]] (whose spectrum is the
// Hermitian matrix's spectrum, each value doubled) — gonum's mat package
// has no public complex Hermitian eigensolver to call directly, and this
// embedding lets every other step of the computation stay on real
// gonum primitives rather than a hand-rolled complex eigenvalue routine
// (spec.md §4's Diagnostics row).
package diag

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/qberr"
	"github.com/sammylord/qbranch/reg"
)

// Snapshot is the reduced density matrix of a register subset: an
// ordered list of distinct configuration keys (stringified tuples of the
// subset's values) and the complex amplitude rho[i][j].
type Snapshot struct {
	Keys []string
	Rho  map[[2]int]complex128
}

func configString(b branch.Branch, ids []int) string {
	buf := make([]byte, 0, 8*len(ids))
	for _, id := range ids {
		buf = appendSigned(buf, b.Get(id).Signed())
		buf = append(buf, ' ')
	}
	return string(buf)
}

func appendSigned(buf []byte, v int64) []byte {
	if v < 0 {
		buf = append(buf, '-')
		v = -v
	}
	s := []byte{}
	if v == 0 {
		s = []byte{'0'}
	}
	for v > 0 {
		s = append([]byte{byte('0' + v%10)}, s...)
		v /= 10
	}
	return append(buf, s...)
}

// Snap builds a reduced density matrix snapshot of regs, tracing out
// every other register, from st's current branches.
func Snap(st *branch.Store, regs []*reg.Key) (*Snapshot, error) {
	if len(regs) == 0 {
		return nil, qberr.Usagef("snap: at least one register is required")
	}
	ids := make([]int, len(regs))
	for i, k := range regs {
		target, ok := k.Target()
		if !ok {
			return nil, qberr.Usagef("snap: register (key %d) is not allocated", k.ID())
		}
		ids[i] = target.RegisterID()
	}

	keyIndex := map[string]int{}
	var keys []string
	rho := map[[2]int]complex128{}

	n := st.Len()
	idxKey := make([]int, n)
	for i := 0; i < n; i++ {
		b := st.Branch(i)
		ck := configString(b, ids)
		ki, ok := keyIndex[ck]
		if !ok {
			ki = len(keys)
			keyIndex[ck] = ki
			keys = append(keys, ck)
		}
		idxKey[i] = ki
	}

	envEqual := make(map[[2]int]bool)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			bi, bj := st.Branch(i), st.Branch(j)
			eq := sameEnvironment(bi, bj, ids)
			envEqual[[2]int{i, j}] = eq
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if !envEqual[[2]int{i, j}] {
				continue
			}
			bi, bj := st.Branch(i), st.Branch(j)
			k1, k2 := idxKey[i], idxKey[j]
			rho[[2]int{k1, k2}] += bi.Amp * cmplx.Conj(bj.Amp)
		}
	}
	return &Snapshot{Keys: keys, Rho: rho}, nil
}

func sameEnvironment(a, b branch.Branch, skip []int) bool {
	skipSet := make(map[int]bool, len(skip))
	for _, id := range skip {
		skipSet[id] = true
	}
	for id, av := range a.Values {
		if skipSet[id] {
			continue
		}
		bv, ok := b.Values[id]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return len(a.Values) == len(b.Values)
}

// mergedKeys returns the sorted union of two snapshots' keys.
func mergedKeys(s1, s2 *Snapshot) []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range s1.Keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range s2.Keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func toMatrix(s *Snapshot, keys []string) [][]complex128 {
	pos := map[string]int{}
	for i, k := range keys {
		pos[k] = i
	}
	n := len(keys)
	m := make([][]complex128, n)
	for i := range m {
		m[i] = make([]complex128, n)
	}
	for idx, v := range s.Rho {
		i := pos[s.Keys[idx[0]]]
		j := pos[s.Keys[idx[1]]]
		m[i][j] += v
	}
	return m
}

// double embeds an n×n complex Hermitian matrix as a 2n×2n real
// symmetric matrix [[Re,-Im],[Im,Re]].
func double(m [][]complex128) *mat.SymDense {
	n := len(m)
	data := make([]float64, (2*n)*(2*n))
	at := func(r, c int) *float64 { return &data[r*(2*n)+c] }
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			*at(i, j) = real(m[i][j])
			*at(i, n+j) = -imag(m[i][j])
			*at(n+i, j) = imag(m[i][j])
			*at(n+i, n+j) = real(m[i][j])
		}
	}
	return mat.NewSymDense(2*n, data)
}

// eigenvalues returns the 2n real eigenvalues of m's doubled embedding.
func eigenvalues(m [][]complex128) ([]float64, error) {
	n := len(m)
	if n == 0 {
		return nil, nil
	}
	var es mat.EigenSym
	ok := es.Factorize(double(m), false)
	if !ok {
		return nil, qberr.Numericalf("diag: eigendecomposition failed to converge")
	}
	return es.Values(nil), nil
}

func matSub(a, b [][]complex128) [][]complex128 {
	n := len(a)
	out := make([][]complex128, n)
	for i := range out {
		out[i] = make([]complex128, n)
		for j := range out[i] {
			out[i][j] = a[i][j] - b[i][j]
		}
	}
	return out
}

func sqrtHermitian(m [][]complex128) ([][]complex128, error) {
	n := len(m)
	var es mat.EigenSym
	ok := es.Factorize(double(m), true)
	if !ok {
		return nil, qberr.Numericalf("diag: eigendecomposition failed to converge")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	sq := mat.NewDense(2*n, 2*n, nil)
	for i := 0; i < 2*n; i++ {
		lam := vals[i]
		if lam < 0 {
			lam = 0
		}
		s := math.Sqrt(lam)
		for r := 0; r < 2*n; r++ {
			for c := 0; c < 2*n; c++ {
				sq.Set(r, c, sq.At(r, c)+s*vecs.At(r, i)*vecs.At(c, i))
			}
		}
	}
	out := make([][]complex128, n)
	for i := range out {
		out[i] = make([]complex128, n)
		for j := range out[i] {
			out[i][j] = complex(sq.At(i, j), -sq.At(i, n+j))
		}
	}
	return out, nil
}

func matMul(a, b [][]complex128) [][]complex128 {
	n := len(a)
	out := make([][]complex128, n)
	for i := range out {
		out[i] = make([]complex128, n)
		for j := 0; j < n; j++ {
			var sum complex128
			for k := 0; k < n; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// Fidelity computes sqrt-fidelity between two snapshots taken over the
// same number of registers: Tr(sqrt(sqrt(rho1) rho2 sqrt(rho1))).
func Fidelity(s1, s2 *Snapshot) (float64, error) {
	keys := mergedKeys(s1, s2)
	rho1 := toMatrix(s1, keys)
	rho2 := toMatrix(s2, keys)

	sqrtRho1, err := sqrtHermitian(rho1)
	if err != nil {
		return 0, err
	}
	product := matMul(matMul(sqrtRho1, rho2), sqrtRho1)
	vals, err := eigenvalues(product)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range vals {
		if v < 0 {
			v = 0
		}
		sum += math.Sqrt(v)
	}
	// each eigenvalue of `product` is doubled by the real embedding.
	return sum / 2, nil
}

// TraceDistance computes (1/2) * sum(|eigenvalues(rho1-rho2)|).
func TraceDistance(s1, s2 *Snapshot) (float64, error) {
	keys := mergedKeys(s1, s2)
	rho1 := toMatrix(s1, keys)
	rho2 := toMatrix(s2, keys)
	diff := matSub(rho1, rho2)
	vals, err := eigenvalues(diff)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range vals {
		sum += math.Abs(v)
	}
	// sum is already over the doubled spectrum (factor 2 from the
	// embedding) so dividing by 4 applies both that correction and the
	// trace-distance definition's own factor of 1/2.
	return sum / 4, nil
}
