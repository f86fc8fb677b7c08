package modkit

import "qmtrends/internal/modkit/module"

// Module is re-exported so services only import modkit
type Module = module.Module
