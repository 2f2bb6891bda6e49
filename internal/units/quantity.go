package units

import "fmt"

// Quantity is a series of values tagged with their unit.
type Quantity struct {
	Values []float64
	Unit   Unit
}

// Quantify attaches the unit named by symbol to values. Values are not
// copied.
func Quantify(values []float64, symbol string) (Quantity, error) {
	u, err := Parse(symbol)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Values: values, Unit: u}, nil
}

// To converts q to target.
func (q Quantity) To(target Unit) (Quantity, error) {
	out, err := Convert(q.Values, q.Unit, target)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Values: out, Unit: target}, nil
}

// Dequantify returns the raw values and the unit string.
func (q Quantity) Dequantify() ([]float64, string) {
	return q.Values, q.Unit.String()
}

func (q Quantity) String() string {
	return fmt.Sprintf("%d values [%s]", len(q.Values), q.Unit)
}
