// Package syntax parses the textual modeling language into ir.Model.
//
// One grammar covers both source models and flattened networks, which is
// what makes the serializer's output valid re-input:
//
//	plant def Motor(uncontrollable u_on; controllable c_start):
//	  controllable c_stop;
//	  location Off: initial; marked;
//	    edge c_start goto On;
//	  location On:
//	    edge c_stop goto Off;
//	    edge u_on;
//	end
//
//	S1: Sensor();
//	M1: Motor(S1.u_on, c_start);
//
//	requirement M1.Off and not S1.On disables {M1.c_start, M1.c_stop};
//	requirement invariant S1.On disables M1.c_stop;
//
//	plant automaton L1: ... end
//	group G1: plant automaton M2: ... end end
//
// Guards bind not > and > or; binary operators are left-associative.
// Line comments start with //.
package syntax
