// Package light models the two-channel lamp: on/off, brightness 0..100
// and a colour mode, and maps that state to PWM duty on the white and
// yellow channels.
//
// Modes: 1 white only, 2 yellow only, 3 both. Mode 0 (or anything else)
// drives nothing regardless of brightness.
package light
