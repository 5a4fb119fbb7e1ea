package validation

// Fit measures how closely the top level of an output matches a model.
type Fit struct {
	Required   int
	Missing    int
	Unexpected int
}

// Fit counts the required keys missing from output and the output keys the
// model does not declare. Levels generated by a loop have no unexpected
// keys.
func (v *Validator) Fit(output map[string]any, inputs map[string]any) Fit {
	cfg := NewConfig(v.model, inputs)
	required := cfg.Required()

	f := Fit{Required: len(required)}
	for _, k := range required {
		if _, ok := output[k]; !ok {
			f.Missing++
		}
	}
	if !cfg.HasLoopKey() {
		for k := range output {
			if _, ok := cfg.Get(k); !ok {
				f.Unexpected++
			}
		}
	}
	return f
}

func (f Fit) ratios() (missing, unexpected float64) {
	n := f.Required
	if n == 0 {
		n = 1
	}
	return float64(f.Missing) / float64(n), float64(f.Unexpected) / float64(n)
}

// Better reports whether f is strictly closer than other: a lower share of
// missing keys, or an equal share and fewer unexpected keys. Shares are
// relative to each model's required keys.
func (f Fit) Better(other Fit) bool {
	fm, fu := f.ratios()
	om, ou := other.ratios()
	if fm != om {
		return fm < om
	}
	return fu < ou
}
