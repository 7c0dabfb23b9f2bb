// Package logging initializes the process-wide structured logger: JSON
// formatted logrus output, optionally rotated on disk via lumberjack.
package logging
