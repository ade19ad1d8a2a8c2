// Command hc-sr04 drives an HC-SR04 ultrasonic ranging module.
//
// Usage:
//
//	hc-sr04 read [-n count] [--interval 60ms]
//	hc-sr04 serve [--listen 127.0.0.1:8787]
//
// Global flags:
//
//	--config       YAML configuration file
//	--driver       line driver: periph, cdev or gpiomem (default periph)
//	--trigger      trigger line (default 4)
//	--echo         echo line (default 17)
//	--chip         default chip for the cdev driver (default gpiochip0)
//	--log-level    debug, info, warn or error (default info)
//	--log-format   text or json (default text)
//
// read prints one decimal line per measurement: the echo width in
// microseconds, or -1 when no echo came back. serve exposes the same value
// at GET /v1/distance/value until SIGINT or SIGTERM.
//
// Failing to acquire either line or to register the edge handler is fatal:
// the command exits non-zero before any measurement is attempted.
package main
