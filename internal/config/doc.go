// Package config loads courtcal settings.
//
// Precedence, lowest first: built-in defaults, courtcal.yaml (searched in
// ., $XDG_CONFIG_HOME/courtcal or ~/.config/courtcal, /etc/courtcal), then
// COURTCAL_* environment variables, then flags bound by the CLI.
//
// Example courtcal.yaml:
//
//	log_level: debug
//	workers: 4
//	profiles:
//	  clay:
//	    hough_threshold: 25
//	    min_line_lightness: 0.6
package config
