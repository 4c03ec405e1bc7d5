package config

// allocation strategies for placing a model request on a device
type AllocationStrategy int

const (
	RoundRobin       AllocationStrategy = iota // 0 : device with fewest total requests processed
	LeastLoaded                                // 1 : device with lowest combined load score
	MemoryBased                                // 2 : device with best free-memory headroom
	PerformanceBased                           // 3 : device with best processing-time history
	AffinityBased                              // 4 : device already hosting the model or its category
)

func (s AllocationStrategy) String() string {
	switch s {
	case RoundRobin:
		return "round_robin"
	case LeastLoaded:
		return "least_loaded"
	case MemoryBased:
		return "memory_based"
	case PerformanceBased:
		return "performance_based"
	case AffinityBased:
		return "affinity_based"
	default:
		return "unknown"
	}
}

func AllocationStrategyEnum(s string) AllocationStrategy {
	switch s {
	case "round_robin":
		return RoundRobin
	case "least_loaded":
		return LeastLoaded
	case "memory_based":
		return MemoryBased
	case "performance_based":
		return PerformanceBased
	case "affinity_based":
		return AffinityBased
	default:
		return DefaultAllocationStrategy
	}
}

// AllStrategies lists every allocation strategy in declaration order.
func AllStrategies() []AllocationStrategy {
	return []AllocationStrategy{RoundRobin, LeastLoaded, MemoryBased, PerformanceBased, AffinityBased}
}

// complexity classes of an inference request
type Complexity int

const (
	Simple   Complexity = iota // 0 : short prompt, small model acceptable
	Moderate                   // 1 : typical request
	Complex                    // 2 : long context or heavy generation
)

func (c Complexity) String() string {
	switch c {
	case Simple:
		return "simple"
	case Moderate:
		return "moderate"
	case Complex:
		return "complex"
	default:
		return "unknown"
	}
}

func ComplexityEnum(s string) Complexity {
	switch s {
	case "simple":
		return Simple
	case "moderate":
		return Moderate
	case "complex":
		return Complex
	default:
		return Moderate
	}
}
