package partition

import "fmt"

// PartitionError reports a grouping that does not fit the network.
type PartitionError struct {
	Group    string
	Instance string
	Message  string
}

func (e *PartitionError) Error() string {
	switch {
	case e.Group != "" && e.Instance != "":
		return fmt.Sprintf("partition: group %s, instance %s: %s", e.Group, e.Instance, e.Message)
	case e.Group != "":
		return fmt.Sprintf("partition: group %s: %s", e.Group, e.Message)
	default:
		return "partition: " + e.Message
	}
}

// CSVStructureError reports a malformed node or matrix CSV file.
// Row and Column are 1-based; zero means not applicable.
type CSVStructureError struct {
	Path    string
	Row     int
	Column  int
	Message string
}

func (e *CSVStructureError) Error() string {
	msg := e.Message
	if e.Row > 0 && e.Column > 0 {
		msg = fmt.Sprintf("%s at row %d, column %d", msg, e.Row, e.Column)
	} else if e.Row > 0 {
		msg = fmt.Sprintf("%s at row %d", msg, e.Row)
	}
	if e.Path != "" {
		return e.Path + ": " + msg
	}
	return msg
}
