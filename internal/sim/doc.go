// Package sim drives a boundedring.Channel with simulated processes: a
// process table loaded from text or YAML where each process arrives after a
// delay, runs for a burst, and optionally produces or consumes items, plus a
// paced single producer / single consumer demo.
package sim
