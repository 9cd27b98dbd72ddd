// Package scheduler triggers named jobs from cron expressions or fixed
// intervals. A job never overlaps itself: a trigger that fires while the
// previous run is still going is skipped.
package scheduler
