// Package monitor records per-frame cluster summaries during a run and
// renders them afterwards: PNG time-series plots via gonum/plot and an
// HTML dashboard via go-echarts.
package monitor
