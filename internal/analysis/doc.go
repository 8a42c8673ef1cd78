// Package analysis summarises generated and simulated regions.
//
//   - [Describe]: count, mean, standard deviation, median and range
//   - [Pearson], [CorrelationMatrix]: linear correlation between rate columns
//   - [Histogram]: equal-width bins
//   - [Compare]: initial against final population per region
//
// # Example
//
//	names, cols := analysis.RateColumns(regions)
//	matrix, err := analysis.CorrelationMatrix(cols)
//	fmt.Print(analysis.FormatMatrix(names, matrix))
package analysis
