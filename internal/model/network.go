package model

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Network is a small feed-forward regressor: tanh hidden layers and a
// linear output layer, trained by stochastic gradient descent on mean
// squared error. Weights and biases are exported so the whole network
// round-trips through JSON as part of the model artifact.
type Network struct {
	Sizes   []int         `json:"sizes"`
	Weights [][][]float64 `json:"weights"` // [layer][neuron][input]
	Biases  [][]float64   `json:"biases"`  // [layer][neuron]
}

// NewNetwork creates a network with the given layer sizes (input size
// first, output size last) and scaled random initial weights.
func NewNetwork(sizes []int, rng *rand.Rand) (*Network, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("network needs at least input and output layers, got %v", sizes)
	}
	for _, s := range sizes {
		if s < 1 {
			return nil, fmt.Errorf("invalid layer size in %v", sizes)
		}
	}

	n := &Network{Sizes: sizes}
	for l := 1; l < len(sizes); l++ {
		in, out := sizes[l-1], sizes[l]
		scale := 1.0 / math.Sqrt(float64(in))
		w := make([][]float64, out)
		for j := range w {
			w[j] = make([]float64, in)
			for k := range w[j] {
				w[j][k] = (rng.Float64()*2 - 1) * scale
			}
		}
		n.Weights = append(n.Weights, w)
		n.Biases = append(n.Biases, make([]float64, out))
	}
	return n, nil
}

// InputSize returns the expected input vector length.
func (n *Network) InputSize() int { return n.Sizes[0] }

// OutputSize returns the output vector length.
func (n *Network) OutputSize() int { return n.Sizes[len(n.Sizes)-1] }

// Forward runs one input through the network.
func (n *Network) Forward(x []float64) []float64 {
	acts := n.activations(x)
	return acts[len(acts)-1]
}

// activations returns the post-activation values of every layer, input
// included. The last layer is linear; hidden layers are tanh.
func (n *Network) activations(x []float64) [][]float64 {
	acts := make([][]float64, 0, len(n.Sizes))
	acts = append(acts, x)
	cur := x
	last := len(n.Weights) - 1
	for l, w := range n.Weights {
		next := make([]float64, len(w))
		for j, row := range w {
			sum := n.Biases[l][j]
			for k, wk := range row {
				sum += wk * cur[k]
			}
			if l == last {
				next[j] = sum
			} else {
				next[j] = math.Tanh(sum)
			}
		}
		acts = append(acts, next)
		cur = next
	}
	return acts
}

// step performs one SGD update on a single (input, target) pair and
// returns the sample's squared-error loss before the update.
func (n *Network) step(x, y []float64, lr float64) float64 {
	acts := n.activations(x)
	out := acts[len(acts)-1]

	// Output delta for MSE with a linear output layer.
	var loss float64
	delta := make([]float64, len(out))
	for j := range out {
		diff := out[j] - y[j]
		loss += diff * diff
		delta[j] = 2 * diff / float64(len(out))
	}
	loss /= float64(len(out))

	// Backpropagate layer by layer.
	for l := len(n.Weights) - 1; l >= 0; l-- {
		prev := acts[l]
		var prevDelta []float64
		if l > 0 {
			prevDelta = make([]float64, len(prev))
		}
		for j, row := range n.Weights[l] {
			d := delta[j]
			n.Biases[l][j] -= lr * d
			for k := range row {
				if prevDelta != nil {
					prevDelta[k] += row[k] * d
				}
				row[k] -= lr * d * prev[k]
			}
		}
		if prevDelta != nil {
			// tanh'(a) expressed through the stored activation.
			for k := range prevDelta {
				prevDelta[k] *= 1 - prev[k]*prev[k]
			}
			delta = prevDelta
		}
	}
	return loss
}

// meanSquaredError computes the average per-output squared error over a
// sample set without updating weights.
func (n *Network) meanSquaredError(xs, ys [][]float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var total float64
	for i, x := range xs {
		out := n.Forward(x)
		var s float64
		for j := range out {
			d := out[j] - ys[i][j]
			s += d * d
		}
		total += s / float64(len(out))
	}
	return total / float64(len(xs))
}

// meanAbsoluteError computes the average per-output absolute error.
func (n *Network) meanAbsoluteError(xs, ys [][]float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var total float64
	for i, x := range xs {
		out := n.Forward(x)
		var s float64
		for j := range out {
			s += math.Abs(out[j] - ys[i][j])
		}
		total += s / float64(len(out))
	}
	return total / float64(len(xs))
}
