/*
Package algorithms provides implementations of common algorithms for distributed systems.

Highlights:
  - Load Balancing: Round Robin, Least Connections, Weighted Round Robin, Random
*/
package algorithms
