// Package sources reads the two upstream datasets: the SIDRA economic census
// table over HTTP and the IBGE population projection workbook from disk. Both
// return raw tables; no value is coerced here.
package sources
