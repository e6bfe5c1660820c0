// Package prebuilt provides ready-made state graphs ("prebuilts") such as the
// travel planner. Each prebuilt is a Builder that turns a typed configuration
// into a compiled graph you can register with a stategraph.Runtime.
package prebuilt
