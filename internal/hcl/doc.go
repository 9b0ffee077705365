// Package hcl provides the HCL implementation of config.Loader. It parses
// merlin.hcl, evaluates expressions against a context exposing the process
// environment (env.NAME) and the working directory (cwd), and translates the
// decoded schema into config.Model.
package hcl
