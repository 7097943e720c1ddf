package reference

import (
	"math"

	"github.com/23skdu/longbow-bench/internal/model"
)

type variant struct {
	name       string
	aliases    []string
	activation func(float32) float32
}

func silu(x float32) float32 {
	return x / (1 + float32(math.Exp(float64(-x))))
}

// gelu is the tanh approximation.
func gelu(x float32) float32 {
	const c = 0.7978845608028654 // sqrt(2/pi)
	xf := float64(x)
	return float32(0.5 * xf * (1 + math.Tanh(c*(xf+0.044715*xf*xf*xf))))
}

var variants = []variant{
	{name: "llama", aliases: []string{"mistral"}, activation: silu},
	{name: "gpt2", activation: gelu},
	{name: "gptneox", aliases: []string{"gpt-neox", "gpt_neox"}, activation: gelu},
	{name: "bloom", activation: gelu},
	{name: "mpt", activation: gelu},
	{name: "falcon", activation: gelu},
}

func init() {
	for _, v := range variants {
		model.Register(&model.Architecture{
			Name:    v.name,
			Aliases: v.aliases,
			Load: func(ctx *model.LoadContext) (model.Model, error) {
				m, err := newModel(v, ctx)
				if err != nil {
					return nil, err
				}
				return m, nil
			},
		})
	}
}
