// Package app composes the application from its parts.
//
//	internal/app/
//	├── application.go      # Application struct, wiring, defaults
//	├── domain/             # Domain models (pure data structures)
//	│   ├── user/           # Accounts and profiles
//	│   ├── client/         # Billed clients
//	│   └── invoice/        # Invoices, items, enumerated types
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (UserStore, ClientStore, InvoiceStore)
//	│   ├── memory/         # In-memory implementation for testing
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic (auth, clients, invoices)
//	├── httpapi/            # HTTP handlers and routing
//	└── metrics/            # Prometheus collectors
//
// Services depend on the storage interfaces only; the concrete store is
// chosen at composition time.
package app
