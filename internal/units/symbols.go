package units

import "math"

func def(scale float64, d dims) Unit { return Unit{scale: scale, dims: d} }

func alias(table map[string]Unit, u Unit, names ...string) {
	for _, n := range names {
		table[n] = u
	}
}

var (
	length   = dims{dimLength: 1}
	mass     = dims{dimMass: 1}
	duration = dims{dimTime: 1}
	temp     = dims{dimTemperature: 1}
	salinity = dims{dimSalinity: 1}
	angle    = dims{dimAngle: 1}
	speed    = dims{dimLength: 1, dimTime: -1}
	pressure = dims{dimMass: 1, dimLength: -1, dimTime: -2}
	none     = dims{}
)

// symbols holds every named unit Parse understands, either as a whole
// string or as a term of a compound expression.
var symbols = func() map[string]Unit {
	t := make(map[string]Unit)

	alias(t, def(1, length), "m", "meter", "meters", "metre", "metres")
	alias(t, def(0.01, length), "cm", "centimeter", "centimeters")
	alias(t, def(0.001, length), "mm", "millimeter", "millimeters")
	alias(t, def(1000, length), "km", "kilometer", "kilometers")
	alias(t, def(0.3048, length), "ft", "foot", "feet")
	alias(t, def(0.0254, length), "in", "inch", "inches")

	alias(t, def(1, mass), "kg", "kilogram", "kilograms")
	alias(t, def(0.001, mass), "g", "gram", "grams")

	alias(t, def(1, duration), "s", "sec", "second", "seconds")
	alias(t, def(60, duration), "min", "minute", "minutes")
	alias(t, def(3600, duration), "h", "hr", "hour", "hours")
	alias(t, def(86400, duration), "d", "day", "days")

	alias(t, def(1, temp), "K", "kelvin", "degK", "degree_Kelvin", "degrees_Kelvin")
	alias(t, Unit{scale: 1, offset: 273.15, dims: temp},
		"degC", "deg_C", "celsius", "Celsius", "degree_Celsius", "degrees_Celsius", "degree_C", "degrees_C", "°C")
	alias(t, Unit{scale: 5.0 / 9.0, offset: 273.15 - 32*5.0/9.0, dims: temp},
		"degF", "deg_F", "fahrenheit", "Fahrenheit", "degree_Fahrenheit", "degrees_Fahrenheit", "°F")

	alias(t, def(1, salinity), "psu", "PSU", "pss", "PSS", "PSS-78", "practical_salinity_unit", "practical_salinity_units")

	alias(t, def(1, angle), "rad", "radian", "radians")
	alias(t, def(math.Pi/180, angle),
		"deg", "degree", "degrees", "degree_north", "degrees_north", "degree_N", "degrees_N",
		"degree_east", "degrees_east", "degree_E", "degrees_E", "degree_true", "degrees_true")

	alias(t, def(1852.0/3600.0, speed), "knot", "knots", "kt", "kn")
	alias(t, def(0.44704, speed), "mph")

	alias(t, def(1, pressure), "Pa", "pascal", "pascals")
	alias(t, def(100, pressure), "hPa", "mbar", "millibar", "millibars")
	alias(t, def(1000, pressure), "kPa")
	alias(t, def(1e4, pressure), "dbar", "decibar", "decibars")
	alias(t, def(1e5, pressure), "bar", "bars")
	alias(t, def(101325, pressure), "atm")

	alias(t, def(0.01, none), "percent", "%")
	alias(t, def(1e-3, none), "ppt", "ppth")
	alias(t, def(1e-6, none), "ppm")
	alias(t, def(1, none), "count", "counts")

	return t
}()
