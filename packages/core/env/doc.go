// Package env loads dotenv files and expands {{name}} placeholders in
// request settings.
//
// Placeholders resolve against the loaded variables first and the process
// environment second. {{$NAME}} always reads the process environment.
// Unresolved placeholders are left in place.
package env
