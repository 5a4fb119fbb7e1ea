// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

/*
Command structgenie runs schema documents against an OpenAI-compatible
model from the command line.

# Commands

  - run       generate, parse and validate; prints the output as YAML.
    A list of input mappings runs as a batch, --votes runs a majority
    vote and --chain runs a document of templates separated by %%%.
  - compile   print the response schema a template sends to the model
  - validate  check an output document, exit code 2 on violations
  - history   list recorded runs and prune old ones
  - version

# Configuration

Settings come from defaults, an optional YAML file (--config) and
STRUCTGENIE_* environment variables, in that order; a .env file is
loaded first. The engine section supplies defaults that a template's
system config overrides. When enabled, the Prometheus collector,
OpenTelemetry export, the Redis result cache and the run history are
wired into every engine. Build metadata is injected through ldflags
into Version, BuildTime and GitCommit.
*/
package main
