/*
 * @description: fruitmapper 运维命令行入口
 */

package main

func main() {
	Execute()
}
